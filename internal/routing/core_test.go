// ABOUTME: Tests for the skill-routing state machine
// ABOUTME: Covers flow starts, verbatim forwarding, end-of-flow resets, and failure rollback

package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobisognidev/botframework-solutions/internal/activity"
	"github.com/brunobisognidev/botframework-solutions/internal/skill"
	"github.com/brunobisognidev/botframework-solutions/internal/state"
)

// mockConnector implements skill.Connector for testing
type mockConnector struct {
	reply     *activity.Activity
	err       error
	forwarded []*activity.Activity
}

func (m *mockConnector) Forward(_ context.Context, a *activity.Activity) (*activity.Activity, error) {
	m.forwarded = append(m.forwarded, a)
	if m.err != nil {
		return nil, m.err
	}
	return m.reply, nil
}

// mockResponder collects sent activities
type mockResponder struct {
	sent []*activity.Activity
}

func (m *mockResponder) SendActivity(_ context.Context, a *activity.Activity) error {
	m.sent = append(m.sent, a)
	return nil
}

func newTestCore(t *testing.T, conn skill.Connector, opts ...CoreOption) *Core {
	t.Helper()
	core := NewCore(opts...)
	require.NoError(t, core.Register(Starter{Key: "SendAsIs", Connector: conn}))
	require.NoError(t, core.Register(Starter{
		Key:       "SendAsIsWithValues",
		Connector: conn,
		Decorate: SemanticActionDecoration("BookFlight", map[string]any{
			"bookingInfo": map[string]string{
				"Destination": "NY",
				"Origin":      "SEA",
				"TravelDate":  "Tomorrow",
			},
		}),
	}))
	return core
}

func TestCore_StartFlow(t *testing.T) {
	conn := &mockConnector{}
	core := newTestCore(t, conn)
	respond := &mockResponder{}
	rec := state.NewRecord("conv-1")

	inbound := activity.NewMessage("conv-1", "SendAsIs")
	err := core.HandleMessage(context.Background(), rec, inbound, respond)
	require.NoError(t, err)

	assert.Equal(t, "SendAsIs", rec.ActiveFlow)
	require.Len(t, conn.forwarded, 1)
	// Forwarded verbatim: same activity, no decoration
	assert.Same(t, inbound, conn.forwarded[0])
	assert.Empty(t, respond.sent)
}

func TestCore_StartFlowWithDecoration(t *testing.T) {
	conn := &mockConnector{}
	core := newTestCore(t, conn)
	rec := state.NewRecord("conv-1")

	inbound := activity.NewMessage("conv-1", "SendAsIsWithValues")
	err := core.HandleMessage(context.Background(), rec, inbound, &mockResponder{})
	require.NoError(t, err)

	assert.Equal(t, "SendAsIsWithValues", rec.ActiveFlow)
	require.Len(t, conn.forwarded, 1)

	forwarded := conn.forwarded[0]
	require.NotNil(t, forwarded.SemanticAction)
	assert.Equal(t, "BookFlight", forwarded.SemanticAction.Name)
	assert.JSONEq(t,
		`{"Destination":"NY","Origin":"SEA","TravelDate":"Tomorrow"}`,
		string(forwarded.SemanticAction.Entities["bookingInfo"]),
	)

	// The inbound activity itself is never mutated
	assert.Nil(t, inbound.SemanticAction)
}

func TestCore_UnrecognizedIntent(t *testing.T) {
	conn := &mockConnector{}
	core := newTestCore(t, conn)
	respond := &mockResponder{}
	rec := state.NewRecord("conv-1")

	err := core.HandleMessage(context.Background(), rec, activity.NewMessage("conv-1", "anything else"), respond)
	require.NoError(t, err)

	assert.Empty(t, rec.ActiveFlow)
	assert.Empty(t, conn.forwarded)
	require.Len(t, respond.sent, 1)
	assert.Equal(t, "Didn't get that", respond.sent[0].Text)
}

func TestCore_ActiveFlowForwardsVerbatim(t *testing.T) {
	conn := &mockConnector{}
	core := newTestCore(t, conn)
	rec := state.NewRecord("conv-1")
	rec.ActiveFlow = "SendAsIs"

	// Arbitrary text that matches no starter key: active flow wins anyway
	inbound := activity.NewMessage("conv-1", "book me a hotel in Paris")
	err := core.HandleMessage(context.Background(), rec, inbound, &mockResponder{})
	require.NoError(t, err)

	assert.Equal(t, "SendAsIs", rec.ActiveFlow)
	require.Len(t, conn.forwarded, 1)
	assert.Same(t, inbound, conn.forwarded[0])
}

func TestCore_ActiveFlowPrecedesStarterMatch(t *testing.T) {
	conn := &mockConnector{}
	core := newTestCore(t, conn)
	rec := state.NewRecord("conv-1")
	rec.ActiveFlow = "SendAsIs"

	// Text matches another starter key, but no re-matching happens
	inbound := activity.NewMessage("conv-1", "SendAsIsWithValues")
	err := core.HandleMessage(context.Background(), rec, inbound, &mockResponder{})
	require.NoError(t, err)

	assert.Equal(t, "SendAsIs", rec.ActiveFlow)
	require.Len(t, conn.forwarded, 1)
	assert.Nil(t, conn.forwarded[0].SemanticAction)
}

func TestCore_EndOfConversationResetsFlow(t *testing.T) {
	conn := &mockConnector{reply: activity.NewEndOfConversation("conv-1")}
	welcomed := false
	core := newTestCore(t, conn, WithWelcome(
		func(ctx context.Context, conversationID string, respond Responder) error {
			welcomed = true
			a := activity.NewMessage(conversationID, "Hello and welcome!")
			a.SuggestedActions = []string{"SendAsIs", "SendAsIsWithValues"}
			return respond.SendActivity(ctx, a)
		},
	))
	respond := &mockResponder{}
	rec := state.NewRecord("conv-1")
	rec.ActiveFlow = "SendAsIs"

	err := core.HandleMessage(context.Background(), rec, activity.NewMessage("conv-1", "bye"), respond)
	require.NoError(t, err)

	assert.Empty(t, rec.ActiveFlow)
	assert.True(t, welcomed)
	require.Len(t, respond.sent, 2)
	assert.Equal(t, "The skill has ended", respond.sent[0].Text)
	assert.Equal(t, []string{"SendAsIs", "SendAsIsWithValues"}, respond.sent[1].SuggestedActions)
}

func TestCore_SemanticActionNameAsRoutingKey(t *testing.T) {
	conn := &mockConnector{}
	core := newTestCore(t, conn)
	rec := state.NewRecord("conv-1")

	inbound := activity.NewMessage("conv-1", "some free text")
	require.NoError(t, inbound.SetSemanticAction("SendAsIs", nil))

	err := core.HandleMessage(context.Background(), rec, inbound, &mockResponder{})
	require.NoError(t, err)
	assert.Equal(t, "SendAsIs", rec.ActiveFlow)
}

func TestCore_ConnectorUnavailableRollsBackNewFlow(t *testing.T) {
	conn := &mockConnector{err: skill.ErrConnectorUnavailable}
	core := newTestCore(t, conn)
	rec := state.NewRecord("conv-1")

	err := core.HandleMessage(context.Background(), rec, activity.NewMessage("conv-1", "SendAsIs"), &mockResponder{})
	assert.ErrorIs(t, err, skill.ErrConnectorUnavailable)
	assert.Empty(t, rec.ActiveFlow)
}

func TestCore_ConnectorUnavailableKeepsActiveFlow(t *testing.T) {
	conn := &mockConnector{err: skill.ErrConnectorUnavailable}
	core := newTestCore(t, conn)
	rec := state.NewRecord("conv-1")
	rec.ActiveFlow = "SendAsIs"

	err := core.HandleMessage(context.Background(), rec, activity.NewMessage("conv-1", "hi"), &mockResponder{})
	assert.ErrorIs(t, err, skill.ErrConnectorUnavailable)
	// Flow remains active so the next turn can retry
	assert.Equal(t, "SendAsIs", rec.ActiveFlow)
}

func TestCore_InvalidSkillResponseTreatedAsNoReply(t *testing.T) {
	conn := &mockConnector{err: skill.ErrInvalidSkillResponse}
	core := newTestCore(t, conn)
	respond := &mockResponder{}
	rec := state.NewRecord("conv-1")

	err := core.HandleMessage(context.Background(), rec, activity.NewMessage("conv-1", "SendAsIs"), respond)
	require.NoError(t, err)

	assert.Equal(t, "SendAsIs", rec.ActiveFlow)
	assert.Empty(t, respond.sent)
}

func TestCore_UnknownActiveFlowResets(t *testing.T) {
	conn := &mockConnector{}
	core := newTestCore(t, conn)
	respond := &mockResponder{}
	rec := state.NewRecord("conv-1")
	rec.ActiveFlow = "RetiredFlow"

	err := core.HandleMessage(context.Background(), rec, activity.NewMessage("conv-1", "SendAsIs"), respond)
	require.NoError(t, err)

	// Stale tag cleared, message handled as a fresh idle turn
	assert.Equal(t, "SendAsIs", rec.ActiveFlow)
	require.Len(t, conn.forwarded, 1)
}

func TestCore_Keys(t *testing.T) {
	core := newTestCore(t, &mockConnector{})
	assert.Equal(t, []string{"SendAsIs", "SendAsIsWithValues"}, core.Keys())
}

func TestCore_RegisterDuplicates(t *testing.T) {
	core := NewCore()
	require.NoError(t, core.Register(Starter{Key: "SendAsIs", Connector: &mockConnector{}}))

	err := core.Register(Starter{Key: "SendAsIs", Connector: &mockConnector{}})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	err = core.Register(Starter{Key: "Other", Flow: "SendAsIs", Connector: &mockConnector{}})
	assert.ErrorIs(t, err, ErrDuplicateFlow)
}

func TestCore_NotUnderstoodTextOverride(t *testing.T) {
	core := NewCore(WithNotUnderstoodText("¿Qué?"))
	respond := &mockResponder{}

	err := core.HandleMessage(context.Background(), state.NewRecord("conv-1"), activity.NewMessage("conv-1", "hm"), respond)
	require.NoError(t, err)
	require.Len(t, respond.sent, 1)
	assert.Equal(t, "¿Qué?", respond.sent[0].Text)
}
