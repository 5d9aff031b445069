// ABOUTME: Listener hosts a skill behind the WebSocket transport.
// ABOUTME: Accepts connections, optionally verifies bearer tokens, and pairs each activity frame with a reply frame.

package skill

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/brunobisognidev/botframework-solutions/internal/activity"
)

// TurnHandler processes one forwarded activity and returns the skill's direct
// reply, or nil when there is none. Implemented by the skill-side dispatcher.
type TurnHandler interface {
	OnTurn(ctx context.Context, a *activity.Activity) (*activity.Activity, error)
}

// Listener serves the skill side of the WebSocket transport.
type Listener struct {
	handler TurnHandler
	creds   *AppCredentials
	logger  *slog.Logger
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithVerifier requires inbound connections to present a bearer token signed
// with the given credentials.
func WithVerifier(creds *AppCredentials) ListenerOption {
	return func(l *Listener) { l.creds = creds }
}

// WithListenerLogger sets the listener logger.
func WithListenerLogger(logger *slog.Logger) ListenerOption {
	return func(l *Listener) { l.logger = logger.With("component", "skill-listener") }
}

// NewListener creates a listener that dispatches forwarded activities to the
// given handler.
func NewListener(handler TurnHandler, opts ...ListenerOption) *Listener {
	l := &Listener{
		handler: handler,
		logger:  slog.Default().With("component", "skill-listener"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ServeHTTP handles a WebSocket upgrade and serves frames until the caller
// disconnects.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if l.creds != nil {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		appID, err := l.creds.Verify(token)
		if err != nil {
			l.logger.Warn("rejecting connection", "error", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		l.logger.Debug("caller authenticated", "app_id", appID)
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		l.logger.Error("ws accept", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	l.serve(r.Context(), conn)
}

// serve reads activity frames and writes reply frames until the connection
// closes.
func (l *Listener) serve(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				l.logger.Debug("caller disconnected", "status", websocket.CloseStatus(err))
			} else {
				l.logger.Debug("ws read error", "error", err)
			}
			return
		}

		frame, err := UnmarshalFrame(data)
		if err != nil {
			l.logger.Warn("discarding malformed frame", "error", err)
			continue
		}
		if frame.Type != FrameActivity {
			l.logger.Warn("discarding unexpected frame", "type", frame.Type)
			continue
		}

		if err := l.handleFrame(ctx, conn, frame); err != nil {
			l.logger.Error("writing reply", "error", err)
			return
		}
	}
}

// handleFrame runs the handler for one activity frame and writes the paired
// reply or error frame.
func (l *Listener) handleFrame(ctx context.Context, conn *websocket.Conn, frame Frame) error {
	var reply Frame

	a, err := frame.DecodeActivity()
	if err != nil || a == nil {
		l.logger.Warn("malformed activity payload", "frame_id", frame.ID, "error", err)
		reply = Frame{Type: FrameError, ID: frame.ID, Error: "malformed activity"}
		return l.write(ctx, conn, reply)
	}

	replyActivity, err := l.handler.OnTurn(ctx, a)
	if err != nil {
		l.logger.Error("turn handler failed",
			"conversation_id", a.ConversationID,
			"type", a.Type,
			"error", err,
		)
		reply = Frame{Type: FrameError, ID: frame.ID, Error: err.Error()}
		return l.write(ctx, conn, reply)
	}

	reply, err = NewReplyFrame(frame.ID, replyActivity)
	if err != nil {
		return err
	}
	return l.write(ctx, conn, reply)
}

func (l *Listener) write(ctx context.Context, conn *websocket.Conn, frame Frame) error {
	data, err := MarshalFrame(frame)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
