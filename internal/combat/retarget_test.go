package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoPrompts() []RetargetPrompt {
	return []RetargetPrompt{
		{InstanceID: "p1", Owner: SidePlayer, Options: []TargetRef{
			{Kind: TargetCharacter},
			{Kind: TargetField, Side: SideEnemy, InstanceID: "f1"},
		}},
		{InstanceID: "p2", Owner: SidePlayer, Options: []TargetRef{
			{Kind: TargetField, Side: SideEnemy, InstanceID: "f2"},
		}},
	}
}

func TestNegotiatorSeedsDefaults(t *testing.T) {
	n := NewNegotiator()
	n.Open(twoPrompts())

	views := n.Views()
	require.Len(t, views, 2)
	assert.Equal(t, TargetRef{Kind: TargetCharacter}, views[0].Choice)
	assert.Equal(t, TargetRef{Kind: TargetField, Side: SideEnemy, InstanceID: "f2"}, views[1].Choice)
}

func TestNegotiatorPickAndConfirm(t *testing.T) {
	n := NewNegotiator()
	n.Open(twoPrompts())

	field := TargetRef{Kind: TargetField, Side: SideEnemy, InstanceID: "f1"}
	require.NoError(t, n.Pick("p1", field))

	choices, err := n.Confirm()
	require.NoError(t, err)
	require.Len(t, choices, 2)
	assert.Equal(t, RetargetChoice{Owner: SidePlayer, InstanceID: "p1", TargetRef: field}, choices[0])
	assert.Equal(t, 0, n.Pending())

	_, err = n.Confirm()
	assert.ErrorIs(t, err, ErrNoPrompts)
}

func TestNegotiatorRejectsBadPicks(t *testing.T) {
	n := NewNegotiator()
	n.Open(twoPrompts())

	assert.ErrorIs(t, n.Pick("nope", TargetRef{Kind: TargetCharacter}), ErrUnknownPrompt)
	assert.ErrorIs(t, n.Pick("p2", TargetRef{Kind: TargetCharacter}), ErrInvalidTarget)
	assert.ErrorIs(t, n.Pick("p1", TargetRef{Kind: TargetField}), ErrInvalidTarget)
	assert.ErrorIs(t, n.Pick("p1", TargetRef{Kind: "aura"}), ErrInvalidTarget)
}

func TestNegotiatorPromptWithoutOptions(t *testing.T) {
	n := NewNegotiator()
	n.Open([]RetargetPrompt{{InstanceID: "p9", Owner: SidePlayer}})

	choices, err := n.Confirm()
	require.NoError(t, err)
	assert.Equal(t, TargetRef{Kind: TargetCharacter}, choices[0].TargetRef)
}

func TestLabelTarget(t *testing.T) {
	field := BySide[[]FieldSlot]{
		Enemy: []FieldSlot{{InstanceID: "f1", Card: &Card{Name: "Totem"}}},
	}
	assert.Equal(t, "Opponent", LabelTarget(TargetRef{Kind: TargetCharacter}, field))
	assert.Equal(t, "Enemy field: Totem", LabelTarget(TargetRef{Kind: TargetField, Side: SideEnemy, InstanceID: "f1"}, field))
	assert.Equal(t, "Your field: f7", LabelTarget(TargetRef{Kind: TargetField, Side: SidePlayer, InstanceID: "f7"}, field))
}
