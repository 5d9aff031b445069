// ABOUTME: Wire frames for the WebSocket skill transport.
// ABOUTME: JSON envelope pairing forwarded activities with their direct replies.

package skill

import (
	"encoding/json"

	"github.com/brunobisognidev/botframework-solutions/internal/activity"
)

// FrameType represents the type of transport frame.
type FrameType string

const (
	// FrameActivity carries a forwarded activity from caller to skill.
	FrameActivity FrameType = "activity"
	// FrameReply carries the skill's direct reply; an absent activity means
	// the skill had no direct response.
	FrameReply FrameType = "reply"
	// FrameError reports a skill-side failure handling the activity.
	FrameError FrameType = "error"
)

// Frame is the transport envelope. ID correlates a reply with the activity
// frame that triggered it.
type Frame struct {
	Type     FrameType       `json:"type"`
	ID       string          `json:"id,omitempty"`
	Activity json.RawMessage `json:"activity,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// MarshalFrame serializes a Frame to JSON bytes.
func MarshalFrame(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// UnmarshalFrame deserializes JSON bytes into a Frame.
func UnmarshalFrame(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}

// NewActivityFrame wraps an activity for transmission.
func NewActivityFrame(id string, a *activity.Activity) (Frame, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameActivity, ID: id, Activity: raw}, nil
}

// NewReplyFrame wraps a direct reply. A nil activity produces an empty reply
// frame, signaling the skill had nothing to send back.
func NewReplyFrame(id string, a *activity.Activity) (Frame, error) {
	f := Frame{Type: FrameReply, ID: id}
	if a != nil {
		raw, err := json.Marshal(a)
		if err != nil {
			return Frame{}, err
		}
		f.Activity = raw
	}
	return f, nil
}

// DecodeActivity extracts the activity payload from a frame.
func (f Frame) DecodeActivity() (*activity.Activity, error) {
	if len(f.Activity) == 0 {
		return nil, nil
	}
	var a activity.Activity
	if err := json.Unmarshal(f.Activity, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
