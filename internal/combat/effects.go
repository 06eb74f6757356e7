package combat

import (
	"encoding/json"
	"sort"
)

// EffectFreeze blocks the affected side from submitting actions.
const EffectFreeze = "Freeze"

// EffectEntry is a timed status effect on a combatant.
type EffectEntry struct {
	Type       string `json:"type"`
	Target     string `json:"target,omitempty"`
	Power      int    `json:"power"`
	Remaining  int    `json:"remaining"`
	Precedence int    `json:"precedence"`
}

func (e *EffectEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = EffectEntry{}
	if v, ok := scalarString(raw["type"]); ok {
		e.Type = v
	}
	if v, ok := scalarString(raw["target"]); ok {
		e.Target = v
	}
	power, ok := raw["power"]
	if !ok || string(power) == "null" {
		power = raw["amount"]
	}
	e.Power, _ = coerceInt(power)
	e.Remaining, _ = coerceInt(raw["remaining"])
	e.Precedence, _ = coerceInt(raw["precedence"])
	return nil
}

// Active reports whether the effect still has turns left.
func (e EffectEntry) Active() bool {
	return e.Remaining > 0
}

// EffectLedger holds each side's active effects as last reported.
type EffectLedger struct {
	entries BySide[[]EffectEntry]
}

// NewEffectLedger returns an empty ledger.
func NewEffectLedger() *EffectLedger {
	return &EffectLedger{entries: BySide[[]EffectEntry]{Player: []EffectEntry{}, Enemy: []EffectEntry{}}}
}

// Clone returns an independent copy.
func (l *EffectLedger) Clone() *EffectLedger {
	return &EffectLedger{entries: BySide[[]EffectEntry]{
		Player: append([]EffectEntry{}, l.entries.Player...),
		Enemy:  append([]EffectEntry{}, l.entries.Enemy...),
	}}
}

// Replace overwrites side's effects; nil clears them.
func (l *EffectLedger) Replace(side Side, entries []EffectEntry) {
	l.entries.Set(side, append([]EffectEntry{}, entries...))
}

// Entries returns a copy of side's effects.
func (l *EffectLedger) Entries(side Side) []EffectEntry {
	return append([]EffectEntry{}, l.entries.Get(side)...)
}

// Sorted returns side's effects with higher precedence first.
func (l *EffectLedger) Sorted(side Side) []EffectEntry {
	out := l.Entries(side)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Precedence > out[j].Precedence
	})
	return out
}

// Has reports whether side carries an active effect of the given type.
func (l *EffectLedger) Has(side Side, effectType string) bool {
	for _, e := range l.entries.Get(side) {
		if e.Type == effectType && e.Active() {
			return true
		}
	}
	return false
}

// Frozen reports whether side is under an active Freeze.
func (l *EffectLedger) Frozen(side Side) bool {
	return l.Has(side, EffectFreeze)
}
