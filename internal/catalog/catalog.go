// Package catalog loads card templates, the player's starter kit and the
// opponent roster from YAML.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/emberdeck/combat-client-go/internal/combat"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// File represents the top-level YAML structure.
type File struct {
	Player  PlayerEntry   `yaml:"player"`
	Cards   []combat.Card `yaml:"cards"`
	Enemies []EnemyEntry  `yaml:"enemies"`
}

// PlayerEntry is the starter kit.
type PlayerEntry struct {
	Stats StatsEntry  `yaml:"stats"`
	Deck  []DeckEntry `yaml:"deck"`
	Hand  []string    `yaml:"hand"`
}

// DeckEntry references a card template and how many copies to include.
type DeckEntry struct {
	ID    string `yaml:"id"`
	Count int    `yaml:"count"`
}

// StatsEntry holds optional combatant stats.
type StatsEntry struct {
	HP                *int `yaml:"hp"`
	Vitality          *int `yaml:"vitality"`
	SP                *int `yaml:"sp"`
	MaxSP             *int `yaml:"maxSp"`
	AttackPower       *int `yaml:"attackPower"`
	PhysicalPower     *int `yaml:"physicalPower"`
	SupernaturalPower *int `yaml:"supernaturalPower"`
	Defense           *int `yaml:"defense"`
	Speed             *int `yaml:"speed"`
}

// EnemyEntry is one opponent in the roster.
type EnemyEntry struct {
	ID       string      `yaml:"id"`
	Name     string      `yaml:"name"`
	Vitality *int        `yaml:"vitality"`
	Stats    StatsEntry  `yaml:"stats"`
	Deck     []DeckEntry `yaml:"deck"`
}

// Catalog is a parsed, validated catalog file.
type Catalog struct {
	cards   map[string]combat.Card
	player  PlayerEntry
	enemies []EnemyEntry
}

// Default returns the embedded starter catalog.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog file. An empty path loads the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog YAML: %w", err)
	}

	c := &Catalog{
		cards:   make(map[string]combat.Card, len(f.Cards)),
		player:  f.Player,
		enemies: f.Enemies,
	}
	for _, card := range f.Cards {
		if card.TemplateID == "" {
			return nil, fmt.Errorf("card %q has no id", card.Name)
		}
		if _, dup := c.cards[card.TemplateID]; dup {
			return nil, fmt.Errorf("duplicate card id %q", card.TemplateID)
		}
		c.cards[card.TemplateID] = card
	}

	if _, err := c.expand(f.Player.Deck); err != nil {
		return nil, fmt.Errorf("player deck: %w", err)
	}
	for _, id := range f.Player.Hand {
		if _, ok := c.cards[id]; !ok {
			return nil, fmt.Errorf("player hand: unknown card %q", id)
		}
	}
	seen := make(map[string]struct{}, len(f.Enemies))
	for _, e := range f.Enemies {
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("duplicate enemy id %q", e.ID)
		}
		seen[e.ID] = struct{}{}
		if _, err := c.expand(e.Deck); err != nil {
			return nil, fmt.Errorf("enemy %s deck: %w", e.ID, err)
		}
	}
	return c, nil
}

// Card returns the template with id.
func (c *Catalog) Card(id string) (combat.Card, bool) {
	card, ok := c.cards[id]
	if !ok {
		return combat.Card{}, false
	}
	return card.Clone(), true
}

// Loadout builds the player's starting kit.
func (c *Catalog) Loadout() combat.Loadout {
	deck, _ := c.expand(c.player.Deck)
	hand := make([]combat.Card, 0, len(c.player.Hand))
	for _, id := range c.player.Hand {
		card, _ := c.Card(id)
		hand = append(hand, card)
	}
	return combat.Loadout{Deck: deck, Hand: hand, Stats: c.player.Stats.toStats()}
}

// Enemy returns the opponent profile with id.
func (c *Catalog) Enemy(id string) (combat.OpponentProfile, bool) {
	for _, e := range c.enemies {
		if e.ID == id {
			return c.profile(e), true
		}
	}
	return combat.OpponentProfile{}, false
}

// Enemies returns every opponent in roster order.
func (c *Catalog) Enemies() []combat.OpponentProfile {
	out := make([]combat.OpponentProfile, 0, len(c.enemies))
	for _, e := range c.enemies {
		out = append(out, c.profile(e))
	}
	return out
}

func (c *Catalog) profile(e EnemyEntry) combat.OpponentProfile {
	deck, _ := c.expand(e.Deck)
	p := combat.OpponentProfile{
		ID:    e.ID,
		Name:  e.Name,
		Stats: e.Stats.toStats(),
		Deck:  deck,
	}
	if e.Vitality != nil {
		p.Vitality = combat.Some(*e.Vitality)
	}
	return p
}

func (c *Catalog) expand(entries []DeckEntry) ([]combat.Card, error) {
	var cards []combat.Card
	for _, entry := range entries {
		card, ok := c.cards[entry.ID]
		if !ok {
			return nil, fmt.Errorf("unknown card %q", entry.ID)
		}
		count := entry.Count
		if count <= 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			cards = append(cards, card.Clone())
		}
	}
	return cards, nil
}

func (s StatsEntry) toStats() combat.CombatantStats {
	opt := func(v *int) combat.Optional[int] {
		if v == nil {
			return combat.None[int]()
		}
		return combat.Some(*v)
	}
	return combat.CombatantStats{
		HP:                opt(s.HP),
		Vitality:          opt(s.Vitality),
		SP:                opt(s.SP),
		MaxSP:             opt(s.MaxSP),
		AttackPower:       opt(s.AttackPower),
		PhysicalPower:     opt(s.PhysicalPower),
		SupernaturalPower: opt(s.SupernaturalPower),
		Defense:           opt(s.Defense),
		Speed:             opt(s.Speed),
	}
}
