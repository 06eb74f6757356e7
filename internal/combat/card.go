package combat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Side identifies one of the two combatants.
type Side string

const (
	SidePlayer Side = "player"
	SideEnemy  Side = "enemy"
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SidePlayer {
		return SideEnemy
	}
	return SidePlayer
}

// Valid reports whether s names a combatant.
func (s Side) Valid() bool {
	return s == SidePlayer || s == SideEnemy
}

// BySide pairs a value for each combatant.
type BySide[T any] struct {
	Player T `json:"player"`
	Enemy  T `json:"enemy"`
}

// Get returns the value for side.
func (b BySide[T]) Get(side Side) T {
	if side == SideEnemy {
		return b.Enemy
	}
	return b.Player
}

// Set stores v for side.
func (b *BySide[T]) Set(side Side, v T) {
	if side == SideEnemy {
		b.Enemy = v
		return
	}
	b.Player = v
}

// InstanceID is the per-copy identity of a card. Authorities send it as a
// number or a string; both decode to the same value.
type InstanceID string

func (id InstanceID) numeric() bool {
	if id == "" {
		return false
	}
	n, err := strconv.ParseUint(string(id), 10, 64)
	return err == nil && strconv.FormatUint(n, 10) == string(id)
}

func (id InstanceID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *InstanceID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to decode instance id: %w", err)
		}
		*id = InstanceID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("failed to decode instance id: %w", err)
	}
	*id = InstanceID(n.String())
	return nil
}

// StringList decodes a string, a number, or an array of either.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make(StringList, 0, len(raw))
		for _, r := range raw {
			if s, ok := scalarString(r); ok {
				out = append(out, s)
			}
		}
		*l = out
		return nil
	}
	s, ok := scalarString(data)
	if !ok {
		return fmt.Errorf("unsupported list value %s", data)
	}
	*l = StringList{s}
	return nil
}

// Contains reports whether v is in the list.
func (l StringList) Contains(v string) bool {
	for _, s := range l {
		if s == v {
			return true
		}
	}
	return false
}

func scalarString(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) || len(data) == 0 {
		return "", false
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false
		}
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", false
	}
	return n.String(), true
}

// MultiHit describes a repeating ability schedule.
type MultiHit struct {
	Turns    int             `json:"turns,omitempty" yaml:"turns"`
	Link     string          `json:"link,omitempty" yaml:"link"`
	Overlap  string          `json:"overlap,omitempty" yaml:"overlap"`
	Schedule json.RawMessage `json:"schedule,omitempty" yaml:"-"`
}

// Ability is one typed effect carried by a card.
type Ability struct {
	Key        string     `json:"key,omitempty" yaml:"key"`
	Type       string     `json:"type" yaml:"type"`
	Power      int        `json:"power,omitempty" yaml:"power"`
	Duration   int        `json:"duration,omitempty" yaml:"duration"`
	Precedence int        `json:"precedence,omitempty" yaml:"precedence"`
	Target     string     `json:"target,omitempty" yaml:"target"`
	LinkedTo   StringList `json:"linkedTo,omitempty" yaml:"linkedTo"`
	MultiHit   *MultiHit  `json:"multiHit,omitempty" yaml:"multiHit"`
}

const abilityMultiHit = "Multi-Hit"

// Card is a card template as the authority and catalog describe it.
type Card struct {
	TemplateID  string     `json:"_id,omitempty" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Types       StringList `json:"type,omitempty" yaml:"type"`
	Description string     `json:"description,omitempty" yaml:"description"`
	Potency     int        `json:"potency,omitempty" yaml:"potency"`
	Defense     int        `json:"defense,omitempty" yaml:"defense"`
	SPCost      *int       `json:"spCost,omitempty" yaml:"spCost"`
	Abilities   []Ability  `json:"abilities,omitempty" yaml:"abilities"`
}

// Cost returns the SP cost and whether the card declares one.
func (c Card) Cost() (int, bool) {
	if c.SPCost == nil {
		return 0, false
	}
	return *c.SPCost, true
}

// HasAbility reports whether any ability has the given type.
func (c Card) HasAbility(abilityType string) bool {
	for _, a := range c.Abilities {
		if a.Type == abilityType {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with c.
func (c Card) Clone() Card {
	out := c
	if c.Types != nil {
		out.Types = append(StringList(nil), c.Types...)
	}
	if c.SPCost != nil {
		cost := *c.SPCost
		out.SPCost = &cost
	}
	if c.Abilities != nil {
		out.Abilities = make([]Ability, len(c.Abilities))
		for i, a := range c.Abilities {
			if a.LinkedTo != nil {
				a.LinkedTo = append(StringList(nil), a.LinkedTo...)
			}
			if a.MultiHit != nil {
				mh := *a.MultiHit
				a.MultiHit = &mh
			}
			out.Abilities[i] = a
		}
	}
	return out
}

// CardInstance is one physical copy of a card in a pile.
type CardInstance struct {
	Card
	InstanceID InstanceID `json:"instanceId,omitempty"`
}

// Clone returns a deep copy of the instance.
func (c CardInstance) Clone() CardInstance {
	return CardInstance{Card: c.Card.Clone(), InstanceID: c.InstanceID}
}

func cloneCards(cards []CardInstance) []CardInstance {
	out := make([]CardInstance, len(cards))
	for i, c := range cards {
		out[i] = c.Clone()
	}
	return out
}
