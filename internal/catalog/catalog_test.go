package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	l := c.Loadout()
	assert.Len(t, l.Deck, 10)
	require.Len(t, l.Hand, 3)
	assert.Equal(t, "Blazing Flurry", l.Hand[0].Name)
	assert.Equal(t, 10000, l.Stats.HP.ValueOr(0))
	assert.Equal(t, 3, l.Stats.SP.ValueOr(0))
	assert.Equal(t, 5, l.Stats.MaxSP.ValueOr(0))

	flurry, ok := c.Card("689ae154604cfd86904a919a")
	require.True(t, ok)
	cost, ok := flurry.Cost()
	require.True(t, ok)
	assert.Equal(t, 2, cost)
	require.NotNil(t, flurry.Abilities[0].MultiHit)
	assert.Equal(t, 3, flurry.Abilities[0].MultiHit.Turns)
}

func TestDefaultEnemies(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	wolf, ok := c.Enemy("ember-wolf")
	require.True(t, ok)
	assert.Equal(t, "Ember Wolf", wolf.Name)
	assert.Len(t, wolf.Deck, 7)
	assert.Equal(t, 20, wolf.Vitality.ValueOr(0))

	_, ok = c.Enemy("nobody")
	assert.False(t, ok)
	assert.Len(t, c.Enemies(), 2)
}

func TestParseRejectsUnknownCards(t *testing.T) {
	_, err := Parse([]byte(`
cards:
  - {id: a, name: A, spCost: 1}
player:
  deck:
    - {id: b}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown card "b"`)

	_, err = Parse([]byte(`
cards:
  - {id: a, name: A}
  - {id: a, name: A2}
`))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cards:
  - {id: jab, name: Jab, spCost: 1, type: [Physical]}
player:
  stats: {hp: 50, sp: 2}
  deck:
    - {id: jab, count: 4}
  hand: [jab]
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	l := c.Loadout()
	assert.Len(t, l.Deck, 4)
	assert.Len(t, l.Hand, 1)
	assert.Equal(t, []string{"Physical"}, []string(l.Hand[0].Types))
	assert.False(t, l.Stats.Speed.IsSet())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
