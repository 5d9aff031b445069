// ABOUTME: Connector is the transport boundary for forwarding activities to a remote skill.
// ABOUTME: Defines the forward contract, error taxonomy, and the outbound interceptor chain.

package skill

import (
	"context"
	"errors"

	"github.com/brunobisognidev/botframework-solutions/internal/activity"
)

// Connector errors
var (
	// ErrConnectorUnavailable means a transport-level failure reaching the
	// skill. The caller must not assume the skill received the message.
	ErrConnectorUnavailable = errors.New("skill connector unavailable")

	// ErrInvalidSkillResponse means the skill replied with something that
	// could not be decoded as an activity.
	ErrInvalidSkillResponse = errors.New("invalid skill response")
)

// Connector forwards a single activity to a remote skill and returns the
// skill's direct reply, if any. A nil reply with nil error means the skill
// accepted the activity without a direct response. Connectors never mutate
// conversation state; that is the caller's responsibility.
type Connector interface {
	Forward(ctx context.Context, a *activity.Activity) (*activity.Activity, error)
}

// Interceptor inspects or mutates an outbound activity before transmission.
// Interceptors run in registration order against a derived copy, so the
// caller's activity is never changed.
type Interceptor func(ctx context.Context, a *activity.Activity) error

// ApplyInterceptors clones the activity and runs the chain against the copy.
// The original is left untouched.
func ApplyInterceptors(ctx context.Context, a *activity.Activity, chain []Interceptor) (*activity.Activity, error) {
	if len(chain) == 0 {
		return a, nil
	}
	out := a.Clone()
	for _, intercept := range chain {
		if err := intercept(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AppendText returns an interceptor that appends a suffix to the outbound
// activity's text. Useful for tagging traffic during debugging.
func AppendText(suffix string) Interceptor {
	return func(_ context.Context, a *activity.Activity) error {
		a.Text += suffix
		return nil
	}
}
