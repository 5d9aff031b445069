// ABOUTME: Sequencer serializes turn processing per conversation id.
// ABOUTME: Turns for different conversations run concurrently; same-id turns run one at a time.

package dispatch

import (
	"context"
	"sync"
)

// slot is the per-conversation exclusion token. refs counts turns holding or
// waiting on the slot so it can be dropped when the last one finishes.
type slot struct {
	token chan struct{}
	refs  int
}

// Sequencer grants each conversation id a single execution slot. Acquire
// blocks until the slot is free or the context is cancelled, so turns for the
// same conversation execute their state-mutation region strictly one at a
// time, in arrival order at the channel.
type Sequencer struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// NewSequencer creates an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{slots: make(map[string]*slot)}
}

// Acquire claims the slot for the conversation id. The returned release
// function must be called exactly once when the turn completes.
func (s *Sequencer) Acquire(ctx context.Context, conversationID string) (func(), error) {
	s.mu.Lock()
	sl, ok := s.slots[conversationID]
	if !ok {
		sl = &slot{token: make(chan struct{}, 1)}
		sl.token <- struct{}{}
		s.slots[conversationID] = sl
	}
	sl.refs++
	s.mu.Unlock()

	select {
	case <-sl.token:
		return func() {
			sl.token <- struct{}{}
			s.drop(conversationID, sl)
		}, nil
	case <-ctx.Done():
		s.drop(conversationID, sl)
		return nil, ctx.Err()
	}
}

// drop decrements the slot refcount, removing the slot when unused.
func (s *Sequencer) drop(conversationID string, sl *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl.refs--
	if sl.refs == 0 {
		delete(s.slots, conversationID)
	}
}
