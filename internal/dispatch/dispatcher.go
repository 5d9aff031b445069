// ABOUTME: TurnDispatcher routes inbound activities to the welcome logic, the routing core, or cleanup.
// ABOUTME: Guarantees per-conversation ordering, exactly-once delivery, and one state save per turn.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brunobisognidev/botframework-solutions/internal/activity"
	"github.com/brunobisognidev/botframework-solutions/internal/dedupe"
	"github.com/brunobisognidev/botframework-solutions/internal/routing"
	"github.com/brunobisognidev/botframework-solutions/internal/skill"
	"github.com/brunobisognidev/botframework-solutions/internal/state"
)

const defaultSkillFailureText = "Sorry, the skill could not be reached. Please try again."

// Responder delivers outbound activities to the user's channel. It is the
// presentation boundary; the dispatcher never renders anything itself.
type Responder interface {
	SendActivity(ctx context.Context, a *activity.Activity) error
}

// TurnContext bundles one inbound activity with the responder for its
// conversation. One context exists per turn.
type TurnContext struct {
	Activity *activity.Activity
	respond  Responder
}

// NewTurnContext creates the context for one turn.
func NewTurnContext(a *activity.Activity, respond Responder) *TurnContext {
	return &TurnContext{Activity: a, respond: respond}
}

// SendActivity delivers an outbound activity through the turn's responder.
func (tc *TurnContext) SendActivity(ctx context.Context, a *activity.Activity) error {
	return tc.respond.SendActivity(ctx, a)
}

// Welcome builds the welcome/menu re-prompt used by both the member-added
// branch and the routing core's end-of-flow branch. The suggested actions
// are the configured starter keys.
func Welcome(text string, actions []string) routing.WelcomeFunc {
	return func(ctx context.Context, conversationID string, respond routing.Responder) error {
		a := activity.NewMessage(conversationID, text)
		a.SuggestedActions = append([]string(nil), actions...)
		return respond.SendActivity(ctx, a)
	}
}

// Dispatcher receives inbound turns and routes them by activity type. All
// collaborators are constructor-passed; there is no runtime service location.
type Dispatcher struct {
	store      state.Store
	core       *routing.Core
	welcome    routing.WelcomeFunc
	transcript state.TranscriptRecorder
	dedupe     *dedupe.Cache
	seq        *Sequencer

	skillFailureText string
	logger           *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTranscript records every inbound and outbound activity to the given
// recorder before acting on it. Recording is best effort.
func WithTranscript(recorder state.TranscriptRecorder) DispatcherOption {
	return func(d *Dispatcher) { d.transcript = recorder }
}

// WithDedupe drops redelivered activity ids within the cache's TTL.
func WithDedupe(cache *dedupe.Cache) DispatcherOption {
	return func(d *Dispatcher) { d.dedupe = cache }
}

// WithSkillFailureText overrides the notice sent when a skill cannot be
// reached.
func WithSkillFailureText(text string) DispatcherOption {
	return func(d *Dispatcher) { d.skillFailureText = text }
}

// WithDispatcherLogger sets the dispatcher logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger.With("component", "dispatch") }
}

// New creates a dispatcher delegating message activities to the routing core
// and member-added welcomes to the given welcome prompt.
func New(store state.Store, core *routing.Core, welcome routing.WelcomeFunc, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:            store,
		core:             core,
		welcome:          welcome,
		seq:              NewSequencer(),
		skillFailureText: defaultSkillFailureText,
		logger:           slog.Default().With("component", "dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnTurn processes one inbound turn to completion. Turns for the same
// conversation are serialized; state is persisted exactly once, after all
// handler logic, on every path including early-return branches.
func (d *Dispatcher) OnTurn(ctx context.Context, tc *TurnContext) error {
	a := tc.Activity
	if a == nil || a.ConversationID == "" {
		return errors.New("turn has no activity or conversation id")
	}

	if d.dedupe != nil && a.ID != "" {
		if d.dedupe.Seen(a.ConversationID + "/" + a.ID) {
			d.logger.Debug("dropping duplicate turn",
				"conversation_id", a.ConversationID,
				"activity_id", a.ID,
			)
			return nil
		}
	}

	release, err := d.seq.Acquire(ctx, a.ConversationID)
	if err != nil {
		return err
	}
	defer release()

	// Record first, then act: the inbound activity lands in the transcript
	// before any handler runs.
	d.record(ctx, a, state.DirectionInbound)
	respond := &recordingResponder{next: tc, dispatcher: d}

	rec, err := d.store.Get(ctx, a.ConversationID, state.NewRecord)
	if err != nil {
		return fmt.Errorf("loading conversation state: %w", err)
	}

	force := false
	var handleErr error

	switch a.Type {
	case activity.TypeConversationUpdate:
		handleErr = d.handleMembersAdded(ctx, a, respond)

	case activity.TypeMessage:
		handleErr = d.core.HandleMessage(ctx, rec, a, respond)

	case activity.TypeEndOfConversation:
		// Root-level end of conversation: clear flow and flow-specific
		// state, then force the save past change detection.
		rec.Reset()
		force = true
		d.logger.Info("conversation ended", "conversation_id", a.ConversationID)

	case activity.TypeEvent:
		d.logger.Debug("ignoring event activity", "conversation_id", a.ConversationID)

	default:
		d.logger.Warn("unhandled activity type",
			"conversation_id", a.ConversationID,
			"type", a.Type,
		)
	}

	// Transport failures surface to the user as a single notice; state was
	// already rolled back by the routing core.
	if handleErr != nil && errors.Is(handleErr, skill.ErrConnectorUnavailable) {
		notice := activity.NewMessage(a.ConversationID, d.skillFailureText)
		if sendErr := respond.SendActivity(ctx, notice); sendErr != nil {
			d.logger.Error("sending failure notice", "error", sendErr)
		}
	}

	if saveErr := d.store.Save(ctx, rec, force); saveErr != nil {
		if handleErr != nil {
			return errors.Join(handleErr, saveErr)
		}
		return fmt.Errorf("saving conversation state: %w", saveErr)
	}

	return handleErr
}

// handleMembersAdded sends the welcome menu for each added member other than
// the bot's own account.
func (d *Dispatcher) handleMembersAdded(ctx context.Context, a *activity.Activity, respond routing.Responder) error {
	for _, member := range a.MembersAdded {
		if member.ID == a.Recipient.ID {
			continue
		}
		if err := d.welcome(ctx, a.ConversationID, respond); err != nil {
			return fmt.Errorf("sending welcome: %w", err)
		}
	}
	return nil
}

// record appends an activity to the transcript, logging failures rather than
// failing the turn.
func (d *Dispatcher) record(ctx context.Context, a *activity.Activity, direction string) {
	if d.transcript == nil {
		return
	}

	id := a.ID
	if id == "" {
		id = uuid.New().String()
	}
	entry := &state.TranscriptEntry{
		ID:             id,
		ConversationID: a.ConversationID,
		Direction:      direction,
		Type:           string(a.Type),
		Author:         a.From.ID,
		Text:           a.Text,
		RecordedAt:     time.Now(),
	}
	if err := d.transcript.RecordActivity(ctx, entry); err != nil {
		d.logger.Error("recording activity",
			"conversation_id", a.ConversationID,
			"activity_id", id,
			"error", err,
		)
	}
}

// recordingResponder records outbound activities before passing them to the
// channel responder.
type recordingResponder struct {
	next       Responder
	dispatcher *Dispatcher
}

func (r *recordingResponder) SendActivity(ctx context.Context, a *activity.Activity) error {
	r.dispatcher.record(ctx, a, state.DirectionOutbound)
	return r.next.SendActivity(ctx, a)
}
