// ABOUTME: WebSocket implementation of the skill Connector.
// ABOUTME: Dials the skill endpoint lazily, authenticates with a bearer token, and pairs replies by frame id.

package skill

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/brunobisognidev/botframework-solutions/internal/activity"
)

const tokenLifetime = 5 * time.Minute

// WebSocketConnector forwards activities to a skill over a WebSocket
// connection. The connection is established on first use and reused across
// turns; a transport failure drops it so the next turn redials.
type WebSocketConnector struct {
	endpoint     string
	creds        *AppCredentials
	interceptors []Interceptor
	logger       *slog.Logger

	// mu serializes forwards, guaranteeing at most one in-flight per turn.
	mu   sync.Mutex
	conn *websocket.Conn
}

// Option configures a WebSocketConnector.
type Option func(*WebSocketConnector)

// WithCredentials attaches app credentials; a bearer token is minted per dial.
func WithCredentials(creds *AppCredentials) Option {
	return func(c *WebSocketConnector) { c.creds = creds }
}

// WithInterceptors sets the ordered transform chain applied to outbound
// activities before transmission.
func WithInterceptors(chain ...Interceptor) Option {
	return func(c *WebSocketConnector) { c.interceptors = chain }
}

// WithLogger sets the connector logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *WebSocketConnector) { c.logger = logger.With("component", "skill-connector") }
}

// NewWebSocketConnector creates a connector for the given ws:// or wss://
// endpoint. The connection is not dialed until the first Forward.
func NewWebSocketConnector(endpoint string, opts ...Option) *WebSocketConnector {
	c := &WebSocketConnector{
		endpoint: endpoint,
		logger:   slog.Default().With("component", "skill-connector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Forward sends one activity to the skill and waits for its direct reply.
// Returns nil when the skill had no direct response.
func (c *WebSocketConnector) Forward(ctx context.Context, a *activity.Activity) (*activity.Activity, error) {
	out, err := ApplyInterceptors(ctx, a, c.interceptors)
	if err != nil {
		return nil, fmt.Errorf("interceptor: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.ensureConn(ctx)
	if err != nil {
		return nil, err
	}

	frameID := uuid.New().String()
	frame, err := NewActivityFrame(frameID, out)
	if err != nil {
		return nil, fmt.Errorf("encoding activity: %w", err)
	}
	data, err := MarshalFrame(frame)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		c.drop()
		return nil, fmt.Errorf("%w: write: %v", ErrConnectorUnavailable, err)
	}

	c.logger.Debug("activity forwarded",
		"conversation_id", out.ConversationID,
		"type", out.Type,
		"frame_id", frameID,
	)

	// Read until the reply matching our frame id arrives. Frames for other
	// ids are not expected on this connection and are treated as malformed.
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			c.drop()
			return nil, fmt.Errorf("%w: read: %v", ErrConnectorUnavailable, err)
		}

		reply, err := UnmarshalFrame(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSkillResponse, err)
		}

		switch reply.Type {
		case FrameReply:
			if reply.ID != frameID {
				c.logger.Warn("discarding reply for unknown frame", "frame_id", reply.ID)
				continue
			}
			replyActivity, err := reply.DecodeActivity()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidSkillResponse, err)
			}
			return replyActivity, nil
		case FrameError:
			return nil, fmt.Errorf("%w: skill error: %s", ErrInvalidSkillResponse, reply.Error)
		default:
			return nil, fmt.Errorf("%w: unexpected frame type %q", ErrInvalidSkillResponse, reply.Type)
		}
	}
}

// Close closes the underlying connection if one is open.
func (c *WebSocketConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "bye")
	c.conn = nil
	return err
}

// ensureConn dials the endpoint if no connection is open. Must be called with
// mu held.
func (c *WebSocketConnector) ensureConn(ctx context.Context) (*websocket.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	opts := &websocket.DialOptions{}
	if c.creds != nil {
		token, err := c.creds.Token(tokenLifetime)
		if err != nil {
			return nil, fmt.Errorf("minting token: %w", err)
		}
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + token}}
	}

	conn, _, err := websocket.Dial(ctx, c.endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnectorUnavailable, c.endpoint, err)
	}

	c.logger.Debug("skill connection established", "endpoint", c.endpoint)
	c.conn = conn
	return conn, nil
}

// drop discards the connection after a transport failure. Must be called with
// mu held.
func (c *WebSocketConnector) drop() {
	if c.conn != nil {
		c.conn.Close(websocket.StatusInternalError, "transport failure")
		c.conn = nil
	}
}
