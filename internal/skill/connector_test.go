// ABOUTME: Tests for the outbound interceptor chain
// ABOUTME: Covers ordering, clone-before-mutate, and error short-circuiting

package skill

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobisognidev/botframework-solutions/internal/activity"
)

func TestApplyInterceptors_RunInOrder(t *testing.T) {
	a := activity.NewMessage("conv-1", "hello")

	out, err := ApplyInterceptors(context.Background(), a, []Interceptor{
		AppendText(" one"),
		AppendText(" two"),
	})
	require.NoError(t, err)

	assert.Equal(t, "hello one two", out.Text)
	// The original is never mutated
	assert.Equal(t, "hello", a.Text)
}

func TestApplyInterceptors_EmptyChainReturnsOriginal(t *testing.T) {
	a := activity.NewMessage("conv-1", "hello")

	out, err := ApplyInterceptors(context.Background(), a, nil)
	require.NoError(t, err)
	assert.Same(t, a, out)
}

func TestApplyInterceptors_ErrorStopsChain(t *testing.T) {
	a := activity.NewMessage("conv-1", "hello")
	boom := errors.New("boom")
	var secondRan bool

	_, err := ApplyInterceptors(context.Background(), a, []Interceptor{
		func(context.Context, *activity.Activity) error { return boom },
		func(context.Context, *activity.Activity) error { secondRan = true; return nil },
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, secondRan)
}
