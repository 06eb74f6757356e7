// Package progress persists the saved game that surrounds an encounter:
// campaign position, money, lingering effects and the checkpoint.
package progress

import (
	"context"
	"encoding/json"
	"math"
	"strconv"

	"github.com/emberdeck/combat-client-go/internal/combat"
)

// SavedGame is the whitelisted saved-game document.
type SavedGame struct {
	CampaignID    string                               `json:"campaignId,omitempty"`
	RoomIndex     *int                                 `json:"roomIndex,omitempty"`
	Money         *float64                             `json:"money,omitempty"`
	ActiveEffects *combat.BySide[[]combat.EffectEntry] `json:"activeEffects,omitempty"`
	OnField       *combat.BySide[[]combat.FieldSlot]   `json:"onField,omitempty"`
	Enemy         *EnemySnapshot                       `json:"enemy,omitempty"`
}

// EnemySnapshot is the opponent as last saved.
type EnemySnapshot struct {
	ID    string      `json:"_id,omitempty"`
	Stats *EnemyStats `json:"stats,omitempty"`
}

// EnemyStats keeps only the counters a resume needs.
type EnemyStats struct {
	HP    int `json:"hp"`
	SP    int `json:"sp"`
	MaxSP int `json:"maxSp"`
}

// Store loads and saves the player's game.
type Store interface {
	// Load returns the saved game, or false when there is none.
	Load(ctx context.Context) (SavedGame, bool, error)
	Save(ctx context.Context, game SavedGame) error
	// Patch merges fields into the saved document; a nil value removes one.
	Patch(ctx context.Context, fields map[string]any) error
	ClearCheckpoint(ctx context.Context) error
}

// Sanitize reduces an arbitrary document to the fields SavedGame knows,
// coercing loosely typed values and dropping anything malformed.
func Sanitize(doc map[string]any) SavedGame {
	var g SavedGame
	if id, ok := stringValue(doc["campaignId"]); ok {
		g.CampaignID = id
	}
	if n, ok := doc["roomIndex"].(float64); ok && !math.IsNaN(n) {
		idx := int(n)
		g.RoomIndex = &idx
	}
	if n, ok := doc["money"].(float64); ok && !math.IsNaN(n) && !math.IsInf(n, 0) {
		money := n
		g.Money = &money
	}
	if raw, ok := doc["activeEffects"]; ok && raw != nil {
		var eff combat.BySide[[]combat.EffectEntry]
		if reencode(raw, &eff) {
			eff.Player = nonNil(eff.Player)
			eff.Enemy = nonNil(eff.Enemy)
			g.ActiveEffects = &eff
		}
	}
	if raw, ok := doc["onField"]; ok && raw != nil {
		var field combat.BySide[[]combat.FieldSlot]
		if reencode(raw, &field) {
			field.Player = nonNil(field.Player)
			field.Enemy = nonNil(field.Enemy)
			g.OnField = &field
		}
	}
	if enemy, ok := doc["enemy"].(map[string]any); ok {
		var snap EnemySnapshot
		if id, ok := stringValue(enemy["_id"]); ok {
			snap.ID = id
		}
		if stats, ok := enemy["stats"].(map[string]any); ok {
			snap.Stats = &EnemyStats{
				HP:    intValue(stats["hp"]),
				SP:    intValue(stats["sp"]),
				MaxSP: intValue(stats["maxSp"]),
			}
		}
		if snap.ID != "" || snap.Stats != nil {
			g.Enemy = &snap
		}
	}
	return g
}

func reencode(v any, dst any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}

func intValue(v any) int {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		return int(t)
	case string:
		n, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return int(n)
	}
	return 0
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// NopStore discards everything.
type NopStore struct{}

func (NopStore) Load(context.Context) (SavedGame, bool, error) { return SavedGame{}, false, nil }
func (NopStore) Save(context.Context, SavedGame) error { return nil }
func (NopStore) Patch(context.Context, map[string]any) error { return nil }
func (NopStore) ClearCheckpoint(context.Context) error { return nil }
