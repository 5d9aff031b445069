// ABOUTME: Store is the persistence boundary for per-conversation records.
// ABOUTME: Defines the ConversationRecord data model and the Store contract.

package state

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Store errors
var (
	// ErrNotFound means no record exists for the conversation id.
	ErrNotFound = errors.New("conversation record not found")

	// ErrStoreUnavailable means the storage backend could not be reached.
	// The failing turn commits nothing; callers may retry on the next turn.
	ErrStoreUnavailable = errors.New("state store unavailable")
)

// ConversationRecord is the per-conversation state mutated within a single
// turn and persisted by the store. ActiveFlow is empty exactly when no skill
// invocation is outstanding.
type ConversationRecord struct {
	ConversationID string                     `json:"conversationId"`
	ActiveFlow     string                     `json:"activeFlow,omitempty"`
	ExtensionData  map[string]json.RawMessage `json:"extensionData,omitempty"`
}

// NewRecord creates an empty record for a conversation. Used as the default
// factory on first turn.
func NewRecord(conversationID string) *ConversationRecord {
	return &ConversationRecord{ConversationID: conversationID}
}

// Clone returns a deep copy so stored records never alias a caller's copy.
func (r *ConversationRecord) Clone() *ConversationRecord {
	if r == nil {
		return nil
	}
	clone := &ConversationRecord{
		ConversationID: r.ConversationID,
		ActiveFlow:     r.ActiveFlow,
	}
	if r.ExtensionData != nil {
		clone.ExtensionData = make(map[string]json.RawMessage, len(r.ExtensionData))
		for k, v := range r.ExtensionData {
			clone.ExtensionData[k] = append(json.RawMessage(nil), v...)
		}
	}
	return clone
}

// Reset clears the active flow and all flow-specific extension state. Used on
// explicit end-of-conversation cleanup.
func (r *ConversationRecord) Reset() {
	r.ActiveFlow = ""
	r.ExtensionData = nil
}

// Factory produces the record used when a conversation has no state yet.
type Factory func(conversationID string) *ConversationRecord

// Store is the state persistence boundary. Implementations must be safe for
// concurrent access across different conversation ids; the dispatcher
// guarantees single-threaded access per conversation id.
type Store interface {
	// Get returns the record for the conversation, creating it via factory
	// if absent. The returned record never aliases stored state.
	Get(ctx context.Context, conversationID string, factory Factory) (*ConversationRecord, error)

	// Save persists the record. With force false an unchanged record is not
	// rewritten; with force true it is written unconditionally. The write is
	// all-or-nothing.
	Save(ctx context.Context, record *ConversationRecord, force bool) error

	// Clear removes all persisted state for the conversation.
	Clear(ctx context.Context, conversationID string) error
}

// Transcript entry directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// TranscriptEntry is one recorded activity in a conversation's ledger.
// Activities are recorded before they are acted on, so the ledger is the
// source of truth for what each turn received and sent.
type TranscriptEntry struct {
	ID             string
	ConversationID string
	Direction      string
	Type           string
	Author         string
	Text           string
	RecordedAt     time.Time
}

// TranscriptRecorder persists transcript entries. Implemented by SQLiteStore;
// the dispatcher treats recording as best effort.
type TranscriptRecorder interface {
	RecordActivity(ctx context.Context, entry *TranscriptEntry) error
}
