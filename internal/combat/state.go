package combat

// Encounter identifies the room being fought.
type Encounter struct {
	CampaignID string `json:"campaignId,omitempty"`
	RoomID     string `json:"roomId,omitempty"`
	EnemyID    string `json:"enemyId,omitempty"`
}

// OpponentProfile is the opponent document loaded before combat starts.
type OpponentProfile struct {
	ID       string         `json:"_id"`
	Name     string         `json:"name"`
	Vitality Optional[int]  `json:"vitality,omitzero"`
	Stats    CombatantStats `json:"stats"`
	Deck     []Card         `json:"deck,omitempty"`
	MoveSet  []Card         `json:"moveSet,omitempty"`
}

// Cards returns the deck, or the move set when no deck is defined.
func (p OpponentProfile) Cards() []Card {
	if len(p.Deck) > 0 {
		return p.Deck
	}
	return p.MoveSet
}

// Loadout is the player's starting kit for a fresh combat.
type Loadout struct {
	Deck  []Card
	Hand  []Card
	Stats CombatantStats
}

// State is the client's full copy of the encounter. The merger never
// mutates a State in place; it returns a new one.
type State struct {
	Piles    *PileStore
	Effects  *EffectLedger
	Stats    BySide[CombatantStats]
	Delta    BySide[StatDelta]
	Prompts  []RetargetPrompt
	Choices  []RetargetChoice
	Selected []InstanceID
	Log      []string
	Opponent *OpponentProfile
}

// NewState returns an empty state.
func NewState(piles *PileStore) *State {
	return &State{
		Piles:    piles,
		Effects:  NewEffectLedger(),
		Prompts:  []RetargetPrompt{},
		Choices:  []RetargetChoice{},
		Selected: []InstanceID{},
		Log:      []string{},
	}
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	out := &State{
		Piles:    s.Piles.Clone(),
		Effects:  s.Effects.Clone(),
		Stats:    s.Stats,
		Delta:    s.Delta,
		Prompts:  clonePrompts(s.Prompts),
		Choices:  append([]RetargetChoice{}, s.Choices...),
		Selected: append([]InstanceID{}, s.Selected...),
		Log:      append([]string{}, s.Log...),
		Opponent: s.Opponent,
	}
	return out
}

func clonePrompts(prompts []RetargetPrompt) []RetargetPrompt {
	out := make([]RetargetPrompt, len(prompts))
	for i, p := range prompts {
		p.Options = append([]TargetRef{}, p.Options...)
		out[i] = p
	}
	return out
}

// selectedCards resolves the selection against the player's hand, in
// selection order.
func (s *State) selectedCards() []CardInstance {
	out := make([]CardInstance, 0, len(s.Selected))
	for _, id := range s.Selected {
		if c, ok := s.Piles.FindInHand(SidePlayer, id); ok {
			out = append(out, c)
		}
	}
	return out
}

// selectedCost sums SP costs of the selection; a card without a cost makes
// the selection unaffordable.
func selectedCost(cards []CardInstance) (int, bool) {
	total := 0
	for _, c := range cards {
		cost, ok := c.Cost()
		if !ok {
			return 0, false
		}
		total += cost
	}
	return total, true
}
