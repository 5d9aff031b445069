// ABOUTME: Sample skill server hosting a scripted echo dialog behind the WebSocket transport
// ABOUTME: Usage: sample-skill [-config sample-skill.toml]

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"

	"github.com/brunobisognidev/botframework-solutions/internal/activity"
	"github.com/brunobisognidev/botframework-solutions/internal/dispatch"
	"github.com/brunobisognidev/botframework-solutions/internal/skill"
	"github.com/brunobisognidev/botframework-solutions/internal/state"
)

func main() {
	configPath := flag.String("config", "sample-skill.toml", "path to TOML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	store := state.NewMemoryStore()
	dialog := &echoDialog{endPhrase: cfg.Skill.EndPhrase}
	dispatcher := dispatch.NewSkillDispatcher(store, dialog, cfg.Skill.IntroText)

	opts := []skill.ListenerOption{skill.WithListenerLogger(logger)}
	if cfg.Skill.AppSecret != "" {
		opts = append(opts, skill.WithVerifier(skill.NewAppCredentials(cfg.Skill.AppID, cfg.Skill.AppSecret)))
	}
	listener := skill.NewListener(&turnBridge{dispatcher: dispatcher}, opts...)

	mux := http.NewServeMux()
	mux.Handle(cfg.Skill.Path, listener)

	server := &http.Server{Addr: cfg.Skill.Addr, Handler: mux}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	logger.Info("sample skill listening", "addr", cfg.Skill.Addr, "path", cfg.Skill.Path)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// turnBridge adapts the SkillDispatcher to the transport's request/reply
// shape: activities the dialog sends are captured, and the direct reply is
// the endOfConversation signal when present, otherwise the last activity.
type turnBridge struct {
	dispatcher *dispatch.SkillDispatcher
}

func (b *turnBridge) OnTurn(ctx context.Context, a *activity.Activity) (*activity.Activity, error) {
	capture := &captureResponder{}
	tc := dispatch.NewTurnContext(a, capture)
	if err := b.dispatcher.OnTurn(ctx, tc); err != nil {
		return nil, err
	}
	return capture.reply(), nil
}

type captureResponder struct {
	sent []*activity.Activity
}

func (r *captureResponder) SendActivity(_ context.Context, a *activity.Activity) error {
	r.sent = append(r.sent, a)
	return nil
}

func (r *captureResponder) reply() *activity.Activity {
	for _, a := range r.sent {
		if a.Type == activity.TypeEndOfConversation {
			return a
		}
	}
	if len(r.sent) == 0 {
		return nil
	}
	return r.sent[len(r.sent)-1]
}

// bookingDetails mirrors the semantic-action entity the root bot attaches to
// flight-booking flows.
type bookingDetails struct {
	Destination string `json:"Destination"`
	Origin      string `json:"Origin"`
	TravelDate  string `json:"TravelDate"`
}

// echoDialog is a scripted stand-in for a real dialog engine. It echoes
// messages, counts turns in the record's extension data, summarizes booking
// semantic actions, and ends the conversation on the configured phrase.
type echoDialog struct {
	endPhrase string
}

func (d *echoDialog) Run(ctx context.Context, tc *dispatch.TurnContext, rec *state.ConversationRecord) error {
	a := tc.Activity
	if a.Type != activity.TypeMessage {
		return nil
	}

	if a.Text == d.endPhrase {
		return tc.SendActivity(ctx, activity.NewEndOfConversation(a.ConversationID))
	}

	turn := bumpTurnCount(rec)

	if a.SemanticAction != nil {
		if raw, ok := a.SemanticAction.Entities["bookingInfo"]; ok {
			var booking bookingDetails
			if err := json.Unmarshal(raw, &booking); err == nil {
				text := fmt.Sprintf("Booking a flight from %s to %s on %s.",
					booking.Origin, booking.Destination, booking.TravelDate)
				return tc.SendActivity(ctx, activity.NewMessage(a.ConversationID, text))
			}
		}
	}

	text := fmt.Sprintf("Echo %d: %s", turn, a.Text)
	return tc.SendActivity(ctx, activity.NewMessage(a.ConversationID, text))
}

// bumpTurnCount increments the dialog's turn counter kept in extension data.
func bumpTurnCount(rec *state.ConversationRecord) int {
	turn := 1
	if rec.ExtensionData != nil {
		if raw, ok := rec.ExtensionData["turnCount"]; ok {
			if prev, err := strconv.Atoi(string(raw)); err == nil {
				turn = prev + 1
			}
		}
	}
	if rec.ExtensionData == nil {
		rec.ExtensionData = make(map[string]json.RawMessage)
	}
	rec.ExtensionData["turnCount"] = json.RawMessage(strconv.Itoa(turn))
	return turn
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
