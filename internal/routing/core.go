// ABOUTME: SkillRoutingCore decides per turn whether to start, continue, or end a skill flow.
// ABOUTME: Owns the activeFlow field and the registered flow-starter table.

package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brunobisognidev/botframework-solutions/internal/activity"
	"github.com/brunobisognidev/botframework-solutions/internal/skill"
	"github.com/brunobisognidev/botframework-solutions/internal/state"
)

// Registration errors
var (
	ErrDuplicateKey  = errors.New("starter key already registered")
	ErrDuplicateFlow = errors.New("flow tag already registered")
)

// Default notice texts, overridable via options.
const (
	defaultNotUnderstoodText = "Didn't get that"
	defaultSkillEndedText    = "The skill has ended"
)

// Responder delivers outbound activities to the user's channel.
type Responder interface {
	SendActivity(ctx context.Context, a *activity.Activity) error
}

// WelcomeFunc re-prompts the root bot's welcome menu. Invoked after a skill
// flow ends.
type WelcomeFunc func(ctx context.Context, conversationID string, respond Responder) error

// Starter maps a routing key to a skill flow: the connector that reaches the
// skill, the flow tag recorded in conversation state, and an optional
// decoration applied to the activity before the first forward.
type Starter struct {
	// Key matches the activity's routing key (semantic action name if
	// present, otherwise trimmed text).
	Key string

	// Flow is the tag stored in ConversationRecord.ActiveFlow while the
	// skill invocation is outstanding. Defaults to Key when empty.
	Flow string

	// Connector reaches the skill hosting this flow.
	Connector skill.Connector

	// Decorate, when set, mutates the derived copy of the activity before
	// the starting forward. Later turns of the flow forward verbatim.
	Decorate func(a *activity.Activity) error
}

// SemanticActionDecoration returns a decoration that attaches the given
// semantic action to the outbound activity. Starter-to-decoration mapping is
// configuration, not code: hosts build these from their flow config.
func SemanticActionDecoration(name string, entities map[string]any) func(*activity.Activity) error {
	return func(a *activity.Activity) error {
		return a.SetSemanticAction(name, entities)
	}
}

// Core is the skill-routing state machine. A conversation is Idle when its
// record has no active flow, and awaiting a skill reply otherwise; the
// active-flow branch always takes precedence over intent matching.
type Core struct {
	starters []*Starter
	byKey    map[string]*Starter
	byFlow   map[string]*Starter

	welcome           WelcomeFunc
	notUnderstoodText string
	skillEndedText    string
	logger            *slog.Logger
}

// CoreOption configures a Core.
type CoreOption func(*Core)

// WithWelcome sets the welcome re-prompt invoked after a skill flow ends.
func WithWelcome(welcome WelcomeFunc) CoreOption {
	return func(c *Core) { c.welcome = welcome }
}

// WithNotUnderstoodText overrides the unmatched-key notice.
func WithNotUnderstoodText(text string) CoreOption {
	return func(c *Core) { c.notUnderstoodText = text }
}

// WithSkillEndedText overrides the end-of-flow notice.
func WithSkillEndedText(text string) CoreOption {
	return func(c *Core) { c.skillEndedText = text }
}

// WithLogger sets the core logger.
func WithLogger(logger *slog.Logger) CoreOption {
	return func(c *Core) { c.logger = logger.With("component", "routing") }
}

// NewCore creates an empty routing core. Flow starters are added with
// Register.
func NewCore(opts ...CoreOption) *Core {
	c := &Core{
		byKey:             make(map[string]*Starter),
		byFlow:            make(map[string]*Starter),
		notUnderstoodText: defaultNotUnderstoodText,
		skillEndedText:    defaultSkillEndedText,
		logger:            slog.Default().With("component", "routing"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a flow starter. Keys and flow tags must be unique.
func (c *Core) Register(st Starter) error {
	if st.Flow == "" {
		st.Flow = st.Key
	}
	if _, exists := c.byKey[st.Key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, st.Key)
	}
	if _, exists := c.byFlow[st.Flow]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFlow, st.Flow)
	}

	starter := &st
	c.starters = append(c.starters, starter)
	c.byKey[st.Key] = starter
	c.byFlow[st.Flow] = starter
	return nil
}

// Keys returns the registered starter keys in registration order. Hosts use
// this to build the welcome menu's suggested actions.
func (c *Core) Keys() []string {
	keys := make([]string, len(c.starters))
	for i, st := range c.starters {
		keys[i] = st.Key
	}
	return keys
}

// HandleMessage runs one message activity through the state machine, mutating
// the record in place. The caller persists the record after the turn.
//
// A transport failure leaves the record as it was before the turn so the flow
// (or its absence) survives for a retry; the error propagates to the turn
// boundary. A malformed skill reply is treated as no reply at all.
func (c *Core) HandleMessage(ctx context.Context, rec *state.ConversationRecord, a *activity.Activity, respond Responder) error {
	priorFlow := rec.ActiveFlow

	var (
		starter  *Starter
		outbound *activity.Activity
	)

	if rec.ActiveFlow != "" {
		st, ok := c.byFlow[rec.ActiveFlow]
		if !ok {
			// The stored flow tag no longer maps to a registered starter
			// (host config changed between turns). Reset to Idle and treat
			// the message as a fresh turn.
			c.logger.Warn("resetting unknown active flow",
				"conversation_id", rec.ConversationID,
				"flow", rec.ActiveFlow,
			)
			rec.Reset()
			priorFlow = ""
		} else {
			// Active flow takes precedence unconditionally: forward the raw
			// activity verbatim, no intent re-matching.
			starter = st
			outbound = a
		}
	}

	if starter == nil {
		key := routingKey(a)
		st, ok := c.byKey[key]
		if !ok {
			// UnrecognizedIntent: a normal terminal branch, not an error.
			c.logger.Debug("unrecognized intent",
				"conversation_id", rec.ConversationID,
				"key", key,
			)
			notice := activity.NewMessage(rec.ConversationID, c.notUnderstoodText)
			return respond.SendActivity(ctx, notice)
		}

		rec.ActiveFlow = st.Flow
		out := a
		if st.Decorate != nil {
			out = a.Clone()
			if err := st.Decorate(out); err != nil {
				rec.ActiveFlow = priorFlow
				return fmt.Errorf("decorating activity for flow %s: %w", st.Flow, err)
			}
		}
		starter = st
		outbound = out

		c.logger.Info("starting skill flow",
			"conversation_id", rec.ConversationID,
			"flow", st.Flow,
		)
	}

	reply, err := starter.Connector.Forward(ctx, outbound)
	if err != nil {
		if errors.Is(err, skill.ErrInvalidSkillResponse) {
			// The skill received the message but replied garbage; treat as
			// no direct reply and keep the flow as set.
			c.logger.Warn("ignoring invalid skill response",
				"conversation_id", rec.ConversationID,
				"flow", starter.Flow,
				"error", err,
			)
			return nil
		}
		// Transport failure: the turn's state mutation is rolled back so the
		// persisted record is unchanged.
		rec.ActiveFlow = priorFlow
		return fmt.Errorf("forwarding to flow %s: %w", starter.Flow, err)
	}

	if reply != nil && reply.Type == activity.TypeEndOfConversation {
		c.logger.Info("skill flow ended",
			"conversation_id", rec.ConversationID,
			"flow", starter.Flow,
		)
		notice := activity.NewMessage(rec.ConversationID, c.skillEndedText)
		if err := respond.SendActivity(ctx, notice); err != nil {
			return err
		}
		if c.welcome != nil {
			if err := c.welcome(ctx, rec.ConversationID, respond); err != nil {
				return err
			}
		}
		rec.ActiveFlow = ""
	}

	return nil
}

// routingKey derives the key matched against the starter table: the semantic
// action name when present, otherwise the trimmed message text.
func routingKey(a *activity.Activity) string {
	if a.SemanticAction != nil && a.SemanticAction.Name != "" {
		return a.SemanticAction.Name
	}
	return strings.TrimSpace(a.Text)
}
