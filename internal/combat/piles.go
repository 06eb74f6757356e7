package combat

import (
	"encoding/json"

	"go.uber.org/zap"
)

// DefaultFieldSlots is the number of persistent field slots per side.
const DefaultFieldSlots = 4

// PileSet holds one combatant's ordered card collections.
type PileSet struct {
	Deck    []CardInstance `json:"deck"`
	Hand    []CardInstance `json:"hand"`
	Discard []CardInstance `json:"discard"`
}

func (p PileSet) clone() PileSet {
	return PileSet{
		Deck:    cloneCards(p.Deck),
		Hand:    cloneCards(p.Hand),
		Discard: cloneCards(p.Discard),
	}
}

// Live reports whether any collection holds a card.
func (p PileSet) Live() bool {
	return len(p.Deck)+len(p.Hand)+len(p.Discard) > 0
}

// PileUpdate carries the collections a response declared. Unset members
// leave the current collection alone; a set empty slice clears it.
type PileUpdate struct {
	Deck    Optional[[]CardInstance]
	Hand    Optional[[]CardInstance]
	Discard Optional[[]CardInstance]
}

// Empty reports whether the update declares nothing.
func (u PileUpdate) Empty() bool {
	return !u.Deck.IsSet() && !u.Hand.IsSet() && !u.Discard.IsSet()
}

// FieldSlot is a card persisting on the field across turns.
type FieldSlot struct {
	InstanceID     InstanceID      `json:"instanceId"`
	Owner          Side            `json:"owner,omitempty"`
	Card           *Card           `json:"card,omitempty"`
	TurnsRemaining int             `json:"turnsRemaining"`
	Link           string          `json:"link,omitempty"`
	ScheduleState  json.RawMessage `json:"scheduleState,omitempty"`
}

func (f *FieldSlot) UnmarshalJSON(data []byte) error {
	type plain FieldSlot
	var aux struct {
		plain
		TurnsRemaining Optional[int] `json:"turnsRemaining"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*f = FieldSlot(aux.plain)
	f.TurnsRemaining = aux.TurnsRemaining.ValueOr(0)
	return nil
}

// Name returns the display name of the slot's card.
func (f FieldSlot) Name() string {
	if f.Card == nil {
		return string(f.InstanceID)
	}
	return f.Card.Name
}

func cloneSlots(slots []FieldSlot) []FieldSlot {
	out := make([]FieldSlot, len(slots))
	for i, s := range slots {
		if s.Card != nil {
			c := s.Card.Clone()
			s.Card = &c
		}
		out[i] = s
	}
	return out
}

// SlotView is one rendered field position; Empty marks padding.
type SlotView struct {
	Empty          bool
	InstanceID     InstanceID
	Name           string
	TurnsRemaining int
}

// PileStore owns deck, hand, discard and field for both sides.
type PileStore struct {
	registry *Registry
	logger   *zap.Logger
	slots    int
	piles    BySide[PileSet]
	field    BySide[[]FieldSlot]
}

// NewPileStore creates an empty store with the given field width.
func NewPileStore(registry *Registry, slots int, logger *zap.Logger) *PileStore {
	if slots <= 0 {
		slots = DefaultFieldSlots
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PileStore{registry: registry, logger: logger, slots: slots}
	for _, side := range []Side{SidePlayer, SideEnemy} {
		s.piles.Set(side, PileSet{Deck: []CardInstance{}, Hand: []CardInstance{}, Discard: []CardInstance{}})
		s.field.Set(side, []FieldSlot{})
	}
	return s
}

// Clone returns an independent copy sharing only the registry.
func (s *PileStore) Clone() *PileStore {
	out := &PileStore{registry: s.registry, logger: s.logger, slots: s.slots}
	out.piles = BySide[PileSet]{Player: s.piles.Player.clone(), Enemy: s.piles.Enemy.clone()}
	out.field = BySide[[]FieldSlot]{Player: cloneSlots(s.field.Player), Enemy: cloneSlots(s.field.Enemy)}
	return out
}

// Piles returns a copy of side's collections.
func (s *PileStore) Piles(side Side) PileSet {
	return s.piles.Get(side).clone()
}

// Field returns a copy of side's field slots.
func (s *PileStore) Field(side Side) []FieldSlot {
	return cloneSlots(s.field.Get(side))
}

// Width returns the number of field slots per side.
func (s *PileStore) Width() int {
	return s.slots
}

// ReplaceSide swaps in the collections u declares, normalized, and leaves
// the rest untouched. It reports whether the hand was replaced.
func (s *PileStore) ReplaceSide(side Side, u PileUpdate) bool {
	cur := s.piles.Get(side)
	handReplaced := false
	if v, ok := u.Hand.Get(); ok {
		cur.Hand = s.registry.Normalize(v)
		handReplaced = true
	}
	if v, ok := u.Deck.Get(); ok {
		cur.Deck = s.registry.Normalize(v)
	}
	if v, ok := u.Discard.Get(); ok {
		cur.Discard = s.registry.Normalize(v)
	}
	s.piles.Set(side, disjoint(cur))
	return handReplaced
}

// SetSide overwrites every collection of side.
func (s *PileStore) SetSide(side Side, p PileSet) {
	s.ReplaceSide(side, PileUpdate{Deck: Some(p.Deck), Hand: Some(p.Hand), Discard: Some(p.Discard)})
}

// ReplaceField swaps in side's field. Expired and duplicate slots are
// dropped and the result is clamped to the field width.
func (s *PileStore) ReplaceField(side Side, slots []FieldSlot) {
	out := make([]FieldSlot, 0, len(slots))
	seen := make(map[InstanceID]struct{}, len(slots))
	for _, slot := range slots {
		if slot.TurnsRemaining <= 0 {
			continue
		}
		if slot.InstanceID != "" {
			if _, dup := seen[slot.InstanceID]; dup {
				continue
			}
			seen[slot.InstanceID] = struct{}{}
		}
		if slot.Owner == "" {
			slot.Owner = side
		}
		out = append(out, slot)
	}
	if len(out) > s.slots {
		s.logger.Warn("field exceeds slot count, clamping",
			zap.String("side", string(side)),
			zap.Int("slots", len(out)),
			zap.Int("max", s.slots),
		)
		out = out[:s.slots]
	}
	s.field.Set(side, cloneSlots(out))
}

// ClearSide empties every collection and the field of side.
func (s *PileStore) ClearSide(side Side) {
	s.piles.Set(side, PileSet{Deck: []CardInstance{}, Hand: []CardInstance{}, Discard: []CardInstance{}})
	s.field.Set(side, []FieldSlot{})
}

// Slots renders side's field as exactly Width positions.
func (s *PileStore) Slots(side Side) []SlotView {
	field := s.field.Get(side)
	views := make([]SlotView, s.slots)
	for i := range views {
		if i >= len(field) {
			views[i] = SlotView{Empty: true}
			continue
		}
		f := field[i]
		views[i] = SlotView{
			InstanceID:     f.InstanceID,
			Name:           f.Name(),
			TurnsRemaining: max(f.TurnsRemaining, 0),
		}
	}
	return views
}

// FindInHand returns the hand card with id.
func (s *PileStore) FindInHand(side Side, id InstanceID) (CardInstance, bool) {
	for _, c := range s.piles.Get(side).Hand {
		if c.InstanceID == id {
			return c.Clone(), true
		}
	}
	return CardInstance{}, false
}

// disjoint removes cards that appear in more than one collection. The hand
// wins over the deck, and the deck over the discard pile.
func disjoint(p PileSet) PileSet {
	seen := make(map[InstanceID]struct{}, len(p.Hand)+len(p.Deck)+len(p.Discard))
	keep := func(cards []CardInstance) []CardInstance {
		out := make([]CardInstance, 0, len(cards))
		for _, c := range cards {
			if _, dup := seen[c.InstanceID]; dup {
				continue
			}
			seen[c.InstanceID] = struct{}{}
			out = append(out, c)
		}
		return out
	}
	p.Hand = keep(p.Hand)
	p.Deck = keep(p.Deck)
	p.Discard = keep(p.Discard)
	return p
}

// DrawInitialHand pools deck and discard, removes duplicate ids, and deals
// the first handSize cards as the hand.
func DrawInitialHand(deck, discard []CardInstance, handSize int) (hand, rest []CardInstance) {
	pool := make([]CardInstance, 0, len(deck)+len(discard))
	seen := make(map[InstanceID]struct{}, cap(pool))
	for _, c := range append(append([]CardInstance{}, deck...), discard...) {
		if c.InstanceID != "" {
			if _, dup := seen[c.InstanceID]; dup {
				continue
			}
			seen[c.InstanceID] = struct{}{}
		}
		pool = append(pool, c)
	}
	n := min(max(handSize, 0), len(pool))
	hand = append([]CardInstance{}, pool[:n]...)
	rest = append([]CardInstance{}, pool[n:]...)
	return hand, rest
}
