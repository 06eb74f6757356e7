package authority

import (
	"math/rand/v2"
	"testing"

	"github.com/emberdeck/combat-client-go/internal/catalog"
	"github.com/emberdeck/combat-client-go/internal/combat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const stubCatalog = `
cards:
  - {id: jab, name: Jab, spCost: 1, potency: 2}
  - id: frost
    name: Frost
    spCost: 1
    abilities:
      - {type: Freeze, duration: 1}
  - id: flurry
    name: Flurry
    spCost: 2
    potency: 1
    abilities:
      - type: Multi-Hit
        key: mh
        multiHit: {turns: 2, link: attack}
  - {id: claw, name: Claw, spCost: 1, potency: 3}
  - id: wall
    name: Wall
    spCost: 1
    abilities:
      - {type: Guard, duration: 2}
enemies:
  - id: wolf
    name: Wolf
    vitality: 5
    stats: {sp: 2, maxSp: 3, attackPower: 1}
    deck:
      - {id: claw, count: 4}
  - id: turtle
    name: Turtle
    vitality: 5
    stats: {sp: 1, maxSp: 1}
    deck:
      - {id: wall, count: 4}
`

func newStubEngine(t *testing.T) (*StubEngine, *catalog.Catalog) {
	t.Helper()
	cat, err := catalog.Parse([]byte(stubCatalog))
	require.NoError(t, err)
	return NewStubEngine(cat, rand.New(rand.NewPCG(1, 2)), zaptest.NewLogger(t)), cat
}

func stubInstance(t *testing.T, cat *catalog.Catalog, templateID, id string) combat.CardInstance {
	t.Helper()
	card, ok := cat.Card(templateID)
	require.True(t, ok, "card %s", templateID)
	return combat.CardInstance{Card: card, InstanceID: combat.InstanceID(id)}
}

// seededRequest returns a play request against a freshly seeded enemy.
func seededRequest(t *testing.T, eng *StubEngine, enemyID string) combat.TurnRequest {
	t.Helper()
	resp := eng.Resolve(combat.TurnRequest{Action: combat.ActionSeed, EnemyID: enemyID, Seed: true})
	require.Empty(t, resp.Error)
	enemy, ok := resp.Enemy.Get()
	require.True(t, ok)
	return combat.TurnRequest{
		EnemyID:      enemyID,
		EnemyHand:    enemy.Hand.ValueOr(nil),
		EnemyDeck:    enemy.Deck.ValueOr(nil),
		EnemyDiscard: enemy.Discard.ValueOr(nil),
		EnemyStats: &combat.StatsEcho{
			HPRemaining: enemy.HPRemaining,
			Vitality:    enemy.Vitality,
			SP:          enemy.SP,
			MaxSP:       enemy.MaxSP,
		},
		PlayerStats: &combat.StatsEcho{
			HP:    combat.Some(100),
			SP:    combat.Some(2),
			MaxSP: combat.Some(3),
		},
	}
}

func TestStubSeedDealsEnemy(t *testing.T) {
	eng, _ := newStubEngine(t)

	resp := eng.Resolve(combat.TurnRequest{Action: combat.ActionSeed, EnemyID: "wolf", Seed: true})
	enemy, ok := resp.Enemy.Get()
	require.True(t, ok)
	assert.Len(t, enemy.Hand.ValueOr(nil), 3)
	assert.Len(t, enemy.Deck.ValueOr(nil), 1)
	assert.Equal(t, 500, enemy.HPRemaining.ValueOr(0))
	assert.Equal(t, 2, enemy.SP.ValueOr(0))
	assert.False(t, resp.Player.Present(), "seed leaves the player alone")
	assert.Contains(t, resp.Log, "Wolf appears.")

	resp = eng.Resolve(combat.TurnRequest{Action: combat.ActionSeed, EnemyID: "ghost"})
	assert.Contains(t, string(resp.Error), "unknown enemy")
}

func TestStubPlayResolvesBothSides(t *testing.T) {
	eng, cat := newStubEngine(t)
	req := seededRequest(t, eng, "wolf")
	req.Action = combat.ActionPlay
	req.Hand = []combat.CardInstance{
		stubInstance(t, cat, "jab", "1"),
		stubInstance(t, cat, "claw", "2"),
		stubInstance(t, cat, "claw", "3"),
	}
	req.Deck = []combat.CardInstance{stubInstance(t, cat, "jab", "4")}
	req.SelectedCards = []combat.InstanceID{"1"}

	resp := eng.Resolve(req)
	require.Empty(t, resp.Error)

	player, ok := resp.Player.Get()
	require.True(t, ok)
	assert.Equal(t, []combat.InstanceID{"2", "3", "4"}, ids(player.Hand.ValueOr(nil)))
	assert.Equal(t, []combat.InstanceID{"1"}, ids(player.Discard.ValueOr(nil)))
	assert.Equal(t, 2, player.SP.ValueOr(0), "paid 1 then regenerated 1")
	assert.Equal(t, 69, player.HP.ValueOr(0))
	assert.Equal(t, "You play Jab.", player.Message)

	enemy, ok := resp.Enemy.Get()
	require.True(t, ok)
	assert.Equal(t, 480, enemy.HPRemaining.ValueOr(0))
	assert.Equal(t, 1, enemy.SP.ValueOr(0))
	assert.Equal(t, "Enemy plays Claw.", enemy.Message)
	assert.Len(t, enemy.Hand.ValueOr(nil), 3)
	assert.False(t, enemy.HP.IsSet())
}

func TestStubFreezeMakesEnemySkip(t *testing.T) {
	eng, cat := newStubEngine(t)
	req := seededRequest(t, eng, "wolf")
	req.Action = combat.ActionPlay
	req.Hand = []combat.CardInstance{stubInstance(t, cat, "frost", "1")}
	req.SelectedCards = []combat.InstanceID{"1"}

	resp := eng.Resolve(req)
	enemy, _ := resp.Enemy.Get()
	assert.Contains(t, enemy.Message, "skips")
	assert.Equal(t, 3, enemy.SP.ValueOr(0))

	effects, ok := resp.ActiveEffects.Get()
	require.True(t, ok)
	require.Len(t, effects.Enemy, 1)
	assert.Equal(t, combat.EffectFreeze, effects.Enemy[0].Type)
	assert.Equal(t, 1, effects.Enemy[0].Remaining)

	player, _ := resp.Player.Get()
	assert.Equal(t, 100, player.HP.ValueOr(0))
}

func TestStubDefendHalvesDamage(t *testing.T) {
	eng, _ := newStubEngine(t)
	req := seededRequest(t, eng, "wolf")
	req.Action = combat.ActionDefend

	resp := eng.Resolve(req)
	player, _ := resp.Player.Get()
	assert.Equal(t, 85, player.HP.ValueOr(0))
	assert.Equal(t, "You defend.", player.Message)
}

func TestStubRetargetPromptAndChoice(t *testing.T) {
	eng, cat := newStubEngine(t)
	req := seededRequest(t, eng, "turtle")
	req.Action = combat.ActionPlay
	req.Hand = []combat.CardInstance{stubInstance(t, cat, "flurry", "1")}
	req.SelectedCards = []combat.InstanceID{"1"}

	resp := eng.Resolve(req)
	field, ok := resp.OnField.Get()
	require.True(t, ok)
	require.Len(t, field.Player, 1)
	require.Len(t, field.Enemy, 1)
	assert.Equal(t, 2, field.Player[0].TurnsRemaining)

	prompts, ok := resp.RetargetPrompts.Get()
	require.True(t, ok)
	require.Len(t, prompts, 1)
	assert.Equal(t, combat.InstanceID("1"), prompts[0].InstanceID)
	require.Len(t, prompts[0].Options, 2)
	wall := prompts[0].Options[1]
	assert.Equal(t, combat.TargetField, wall.Kind)

	enemy, _ := resp.Enemy.Get()
	next := req
	next.Action = combat.ActionSkip
	next.SelectedCards = nil
	next.OnField = field
	next.EnemyHand = enemy.Hand.ValueOr(nil)
	next.EnemyDeck = enemy.Deck.ValueOr(nil)
	next.EnemyDiscard = enemy.Discard.ValueOr(nil)
	next.EnemyStats = &combat.StatsEcho{HPRemaining: enemy.HPRemaining, SP: enemy.SP, MaxSP: enemy.MaxSP}
	next.RetargetChoices = []combat.RetargetChoice{{Owner: combat.SidePlayer, InstanceID: "1", TargetRef: wall}}

	resp = eng.Resolve(next)
	field, _ = resp.OnField.Get()
	assert.Empty(t, field.Enemy, "chosen field card is destroyed")
	assert.Contains(t, resp.Log, "Wall is shattered.")
	assert.Contains(t, resp.Log, "Flurry strikes again.")
	enemy, _ = resp.Enemy.Get()
	assert.Equal(t, 485, enemy.HPRemaining.ValueOr(0))
}

func TestStubEffectiveStats(t *testing.T) {
	eng, _ := newStubEngine(t)
	req := seededRequest(t, eng, "wolf")
	req.Action = combat.ActionSkip
	req.PlayerStats.AttackPower = combat.Some(10)
	req.ActiveEffects.Player = []combat.EffectEntry{{Type: "Stats Up", Power: 3, Remaining: 2}}

	resp := eng.Resolve(req)
	eff, ok := resp.EffectiveStats.Get()
	require.True(t, ok)
	assert.Equal(t, 13, eff.Player.AttackPower.ValueOr(0))
	player, _ := resp.Player.Get()
	assert.Equal(t, 10, player.AttackPower.ValueOr(0))
}

func ids(cards []combat.CardInstance) []combat.InstanceID {
	out := make([]combat.InstanceID, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.InstanceID)
	}
	return out
}
