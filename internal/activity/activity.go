// ABOUTME: Activity is the message unit exchanged between the root bot, skills, and channels.
// ABOUTME: Defines activity kinds, semantic actions, and derived-copy helpers.

package activity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type enumerates the kinds of activity the turn boundary accepts.
type Type string

const (
	TypeMessage            Type = "message"
	TypeConversationUpdate Type = "conversationUpdate"
	TypeEndOfConversation  Type = "endOfConversation"
	TypeEvent              Type = "event"
)

// ChannelAccount identifies a participant in a conversation.
type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// SemanticAction carries a structured intent alongside free text: a name plus
// opaque entity payloads keyed by entity name.
type SemanticAction struct {
	Name     string                     `json:"name"`
	Entities map[string]json.RawMessage `json:"entities,omitempty"`
}

// Activity is one inbound or outbound message unit. Activities are treated as
// immutable once forwarded; handlers that need to change one construct a
// derived copy via Clone first.
type Activity struct {
	ID             string           `json:"id,omitempty"`
	Type           Type             `json:"type"`
	ConversationID string           `json:"conversationId"`
	From           ChannelAccount   `json:"from,omitempty"`
	Recipient      ChannelAccount   `json:"recipient,omitempty"`
	Text           string           `json:"text,omitempty"`
	SemanticAction *SemanticAction  `json:"semanticAction,omitempty"`
	MembersAdded   []ChannelAccount `json:"membersAdded,omitempty"`
	MembersRemoved []ChannelAccount `json:"membersRemoved,omitempty"`

	// SuggestedActions lists quick-reply choices presented with a message.
	SuggestedActions []string `json:"suggestedActions,omitempty"`

	Timestamp time.Time `json:"timestamp,omitempty"`
}

// NewMessage creates a message activity for the given conversation.
func NewMessage(conversationID, text string) *Activity {
	return &Activity{
		ID:             uuid.New().String(),
		Type:           TypeMessage,
		ConversationID: conversationID,
		Text:           text,
		Timestamp:      time.Now().UTC(),
	}
}

// NewEndOfConversation creates the terminal signal a skill sends when its
// flow has completed.
func NewEndOfConversation(conversationID string) *Activity {
	return &Activity{
		ID:             uuid.New().String(),
		Type:           TypeEndOfConversation,
		ConversationID: conversationID,
		Timestamp:      time.Now().UTC(),
	}
}

// Clone returns a deep copy of the activity. The copy shares nothing with the
// original, so callers may decorate it freely before forwarding.
func (a *Activity) Clone() *Activity {
	if a == nil {
		return nil
	}
	clone := *a
	if a.SemanticAction != nil {
		sa := SemanticAction{Name: a.SemanticAction.Name}
		if a.SemanticAction.Entities != nil {
			sa.Entities = make(map[string]json.RawMessage, len(a.SemanticAction.Entities))
			for k, v := range a.SemanticAction.Entities {
				sa.Entities[k] = append(json.RawMessage(nil), v...)
			}
		}
		clone.SemanticAction = &sa
	}
	clone.MembersAdded = append([]ChannelAccount(nil), a.MembersAdded...)
	clone.MembersRemoved = append([]ChannelAccount(nil), a.MembersRemoved...)
	clone.SuggestedActions = append([]string(nil), a.SuggestedActions...)
	return &clone
}

// SetSemanticAction attaches a semantic action, marshaling each entity value
// to its opaque JSON form. Used by flow starters that decorate an activity
// with machine-readable parameters before forwarding.
func (a *Activity) SetSemanticAction(name string, entities map[string]any) error {
	sa := &SemanticAction{Name: name}
	if len(entities) > 0 {
		sa.Entities = make(map[string]json.RawMessage, len(entities))
		for k, v := range entities {
			raw, err := json.Marshal(v)
			if err != nil {
				return err
			}
			sa.Entities[k] = raw
		}
	}
	a.SemanticAction = sa
	return nil
}
