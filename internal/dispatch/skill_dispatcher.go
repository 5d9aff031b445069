// ABOUTME: SkillDispatcher is the turn switch used inside a hosted skill.
// ABOUTME: Runs the local dialog for messages and events, and cleans up state on endOfConversation.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brunobisognidev/botframework-solutions/internal/activity"
	"github.com/brunobisognidev/botframework-solutions/internal/state"
)

// Dialog is the skill's local multi-turn engine. Its internals are outside
// this core; the dispatcher only starts it and hands it the turn's record.
type Dialog interface {
	Run(ctx context.Context, tc *TurnContext, rec *state.ConversationRecord) error
}

// SkillDispatcher routes turns inside a skill: intro plus dialog start on
// member-added, dialog continuation for messages and events, and state
// cleanup with a forced save when the caller ends the conversation.
type SkillDispatcher struct {
	store     state.Store
	dialog    Dialog
	introText string
	logger    *slog.Logger
}

// NewSkillDispatcher creates a dispatcher for a hosted skill.
func NewSkillDispatcher(store state.Store, dialog Dialog, introText string) *SkillDispatcher {
	return &SkillDispatcher{
		store:     store,
		dialog:    dialog,
		introText: introText,
		logger:    slog.Default().With("component", "skill-dispatch"),
	}
}

// OnTurn processes one turn delivered to the skill. State is saved once per
// turn after the dialog runs; endOfConversation clears the record and forces
// the save through change detection.
func (d *SkillDispatcher) OnTurn(ctx context.Context, tc *TurnContext) error {
	a := tc.Activity
	if a == nil || a.ConversationID == "" {
		return errors.New("turn has no activity or conversation id")
	}

	rec, err := d.store.Get(ctx, a.ConversationID, state.NewRecord)
	if err != nil {
		return fmt.Errorf("loading conversation state: %w", err)
	}

	if a.Type == activity.TypeEndOfConversation {
		rec.Reset()
		if err := d.store.Save(ctx, rec, true); err != nil {
			return fmt.Errorf("saving cleared state: %w", err)
		}
		d.logger.Info("caller ended conversation", "conversation_id", a.ConversationID)
		return nil
	}

	var handleErr error

	switch a.Type {
	case activity.TypeConversationUpdate:
		for _, member := range a.MembersAdded {
			if member.ID == a.Recipient.ID {
				continue
			}
			intro := activity.NewMessage(a.ConversationID, d.introText)
			if err := tc.SendActivity(ctx, intro); err != nil {
				handleErr = fmt.Errorf("sending intro: %w", err)
				break
			}
			if err := d.dialog.Run(ctx, tc, rec); err != nil {
				handleErr = err
				break
			}
		}

	case activity.TypeMessage, activity.TypeEvent:
		handleErr = d.dialog.Run(ctx, tc, rec)

	default:
		d.logger.Warn("unhandled activity type",
			"conversation_id", a.ConversationID,
			"type", a.Type,
		)
	}

	if saveErr := d.store.Save(ctx, rec, false); saveErr != nil {
		if handleErr != nil {
			return errors.Join(handleErr, saveErr)
		}
		return fmt.Errorf("saving conversation state: %w", saveErr)
	}

	return handleErr
}
