// ABOUTME: Tests for the activity envelope
// ABOUTME: Covers deep cloning and semantic-action decoration

package activity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClone_DeepCopy(t *testing.T) {
	a := NewMessage("conv-1", "hello")
	a.MembersAdded = []ChannelAccount{{ID: "user-1"}}
	a.SuggestedActions = []string{"one", "two"}
	require.NoError(t, a.SetSemanticAction("BookFlight", map[string]any{
		"bookingInfo": map[string]string{"Destination": "NY"},
	}))

	clone := a.Clone()

	clone.Text = "changed"
	clone.SemanticAction.Name = "Other"
	clone.SemanticAction.Entities["bookingInfo"] = json.RawMessage(`{}`)
	clone.MembersAdded[0].ID = "user-2"
	clone.SuggestedActions[0] = "three"

	assert.Equal(t, "hello", a.Text)
	assert.Equal(t, "BookFlight", a.SemanticAction.Name)
	assert.JSONEq(t, `{"Destination":"NY"}`, string(a.SemanticAction.Entities["bookingInfo"]))
	assert.Equal(t, "user-1", a.MembersAdded[0].ID)
	assert.Equal(t, "one", a.SuggestedActions[0])
}

func TestClone_Nil(t *testing.T) {
	var a *Activity
	assert.Nil(t, a.Clone())
}

func TestSetSemanticAction(t *testing.T) {
	a := NewMessage("conv-1", "SendAsIsWithValues")

	err := a.SetSemanticAction("BookFlight", map[string]any{
		"bookingInfo": map[string]string{
			"Destination": "NY",
			"Origin":      "SEA",
			"TravelDate":  "Tomorrow",
		},
	})
	require.NoError(t, err)

	require.NotNil(t, a.SemanticAction)
	assert.Equal(t, "BookFlight", a.SemanticAction.Name)
	assert.JSONEq(t,
		`{"Destination":"NY","Origin":"SEA","TravelDate":"Tomorrow"}`,
		string(a.SemanticAction.Entities["bookingInfo"]),
	)
}

func TestSetSemanticAction_UnmarshalableEntity(t *testing.T) {
	a := NewMessage("conv-1", "x")
	err := a.SetSemanticAction("Broken", map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestNewEndOfConversation(t *testing.T) {
	a := NewEndOfConversation("conv-9")
	assert.Equal(t, TypeEndOfConversation, a.Type)
	assert.Equal(t, "conv-9", a.ConversationID)
	assert.NotEmpty(t, a.ID)
}
