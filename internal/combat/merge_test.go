package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func baseState(t *testing.T) *State {
	t.Helper()
	st := NewState(NewPileStore(NewRegistry(NewCounterSequence(500), nil), 4, zaptest.NewLogger(t)))
	st.Piles.SetSide(SidePlayer, PileSet{
		Deck:    []CardInstance{inst("10", "d1", 1), inst("11", "d2", 1)},
		Hand:    []CardInstance{inst("1", "h1", 1), inst("2", "h2", 1)},
		Discard: []CardInstance{inst("20", "x1", 1)},
	})
	st.Piles.ReplaceField(SideEnemy, []FieldSlot{{InstanceID: "f1", TurnsRemaining: 2}})
	st.Effects.Replace(SidePlayer, []EffectEntry{{Type: "Burn", Remaining: 2}})
	st.Stats.Player = CombatantStats{HP: Some(500), SP: Some(3), AttackPower: Some(10)}
	st.Selected = []InstanceID{"1"}
	return st
}

func decode(t *testing.T, body string) TurnResponse {
	t.Helper()
	resp, err := DecodeTurnResponse([]byte(body))
	require.NoError(t, err)
	return resp
}

func TestMergeEmptyResponseIsIdentity(t *testing.T) {
	m := NewMerger(SidePlayer, 0, zaptest.NewLogger(t))
	prev := baseState(t)
	next, report := m.Merge(prev, decode(t, `{}`))

	assert.Empty(t, report.Keys)
	assert.Equal(t, prev.Piles.Piles(SidePlayer), next.Piles.Piles(SidePlayer))
	assert.Equal(t, prev.Piles.Field(SideEnemy), next.Piles.Field(SideEnemy))
	assert.Equal(t, prev.Effects.Entries(SidePlayer), next.Effects.Entries(SidePlayer))
	assert.Equal(t, prev.Stats, next.Stats)
	assert.Equal(t, []InstanceID{"1"}, next.Selected)
}

func TestMergeSparseOverwrite(t *testing.T) {
	m := NewMerger(SidePlayer, 0, zaptest.NewLogger(t))
	prev := baseState(t)

	next, report := m.Merge(prev, decode(t, `{"player":{"hand":[{"instanceId":"3","name":"h3"}],"deck":[]}}`))
	assert.True(t, report.HandReplaced.Player)

	p := next.Piles.Piles(SidePlayer)
	assert.Equal(t, []InstanceID{"3"}, instanceIDs(p.Hand))
	assert.Empty(t, p.Deck)
	assert.Equal(t, []InstanceID{"20"}, instanceIDs(p.Discard), "absent discard is kept")
	assert.Empty(t, next.Selected, "replacing the hand clears the selection")

	// prev is untouched.
	assert.Len(t, prev.Piles.Piles(SidePlayer).Deck, 2)
	assert.Equal(t, []InstanceID{"1"}, prev.Selected)
}

func TestMergeNullEffectsClearAndAbsentKeep(t *testing.T) {
	m := NewMerger(SidePlayer, 0, nil)
	prev := baseState(t)

	kept, _ := m.Merge(prev, decode(t, `{"player":{"sp":1}}`))
	assert.Len(t, kept.Effects.Entries(SidePlayer), 1)
	assert.Len(t, kept.Piles.Field(SideEnemy), 1)

	cleared, _ := m.Merge(prev, decode(t, `{"activeEffects":null,"onField":null}`))
	assert.Empty(t, cleared.Effects.Entries(SidePlayer))
	assert.Empty(t, cleared.Piles.Field(SideEnemy))
}

func TestMergeHPResolution(t *testing.T) {
	m := NewMerger(SidePlayer, 0, nil)
	prev := baseState(t)

	cases := []struct {
		body string
		want int
	}{
		{`{"player":{"hp":40,"hpRemaining":30}}`, 40},
		{`{"player":{"hpRemaining":30}}`, 30},
		{`{"player":{"sp":2}}`, 500},
	}
	for _, tc := range cases {
		next, _ := m.Merge(prev, decode(t, tc.body))
		hp, ok := next.Stats.Player.CurrentHP()
		require.True(t, ok, tc.body)
		assert.Equal(t, tc.want, hp, tc.body)
	}

	fresh := NewState(NewPileStore(NewRegistry(NewCounterSequence(1), nil), 4, nil))
	next, _ := m.Merge(fresh, decode(t, `{"enemy":{"vitality":7}}`))
	hp, ok := next.Stats.Enemy.CurrentHP()
	require.True(t, ok)
	assert.Equal(t, 700, hp)
}

func TestMergeFiltersPromptsToLocalSide(t *testing.T) {
	m := NewMerger(SidePlayer, 0, nil)
	prev := baseState(t)

	next, report := m.Merge(prev, decode(t, `{"retargetPrompts":[
		{"instanceId":"p1","owner":"player","options":[{"kind":"character"}]},
		{"instanceId":"e1","owner":"enemy","options":[{"kind":"character"}]}
	]}`))
	assert.True(t, report.PromptsReplaced)
	require.Len(t, next.Prompts, 1)
	assert.Equal(t, InstanceID("p1"), next.Prompts[0].InstanceID)

	kept, report := m.Merge(next, decode(t, `{"player":{"sp":1}}`))
	assert.False(t, report.PromptsReplaced)
	assert.Len(t, kept.Prompts, 1)
}

func TestMergeClearsSubmittedChoices(t *testing.T) {
	m := NewMerger(SidePlayer, 0, nil)
	prev := baseState(t)
	prev.Choices = []RetargetChoice{{Owner: SidePlayer, InstanceID: "p1", TargetRef: TargetRef{Kind: TargetCharacter}}}

	next, _ := m.Merge(prev, decode(t, `{}`))
	assert.Empty(t, next.Choices)
}

func TestMergeEffectiveStatsDelta(t *testing.T) {
	m := NewMerger(SidePlayer, 0, nil)
	prev := baseState(t)

	next, _ := m.Merge(prev, decode(t, `{
		"player":{"attackPower":10,"physicalPower":5},
		"enemy":{"attackPower":8},
		"effectiveStats":{"player":{"attackPower":14},"enemy":{"attackPower":6}}
	}`))
	assert.Equal(t, StatDelta{AttackPower: 4}, next.Delta.Player)
	assert.Equal(t, StatDelta{AttackPower: -2}, next.Delta.Enemy)
	assert.Equal(t, 10, next.Stats.Player.AttackPower.ValueOr(0), "deltas are display only")

	noEnemy, _ := m.Merge(prev, decode(t, `{"player":{"attackPower":10},"effectiveStats":{"player":{"attackPower":99}}}`))
	assert.True(t, noEnemy.Delta.Player.Zero())
}

func TestMergeLogIsBounded(t *testing.T) {
	m := NewMerger(SidePlayer, 3, nil)
	prev := baseState(t)

	next, _ := m.Merge(prev, decode(t, `{"log":["a","b"],"player":{"message":"played"},"enemy":{"message":"skipped"}}`))
	assert.Equal(t, []string{"b", "You: played", "Enemy: skipped"}, next.Log)
}

func TestMergeSelectionPrunedWhenHandKept(t *testing.T) {
	m := NewMerger(SidePlayer, 0, nil)
	prev := baseState(t)
	prev.Selected = []InstanceID{"1", "ghost"}

	next, _ := m.Merge(prev, decode(t, `{"player":{"discard":[]}}`))
	assert.Equal(t, []InstanceID{"1"}, next.Selected)
}
