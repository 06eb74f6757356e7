package combat

// SideView is a read-only snapshot of one combatant.
type SideView struct {
	Deck    []CardInstance `json:"deck"`
	Hand    []CardInstance `json:"hand"`
	Discard []CardInstance `json:"discard"`
	Field   []SlotView     `json:"field"`
	Slots   []FieldSlot    `json:"slots"`
	Effects []EffectEntry  `json:"effects"`
	Stats   CombatantStats `json:"stats"`
	HP      Optional[int]  `json:"hp,omitzero"`
	Delta   StatDelta      `json:"delta"`
	Frozen  bool           `json:"frozen"`
}

// SessionView is a read-only snapshot of the whole session for rendering.
type SessionView struct {
	SessionID      string           `json:"sessionId"`
	Encounter      Encounter        `json:"encounter"`
	OpponentName   string           `json:"opponentName,omitempty"`
	Player         SideView         `json:"player"`
	Enemy          SideView         `json:"enemy"`
	Selected       []InstanceID     `json:"selected"`
	SelectedCost   int              `json:"selectedCost"`
	TurnState      string           `json:"turnState"`
	Gate           Gate             `json:"gate"`
	CanSubmit      bool             `json:"canSubmit"`
	Prompts        []PromptView     `json:"prompts"`
	PendingChoices []RetargetChoice `json:"pendingChoices"`
	Played         *PlayedBatch     `json:"played,omitempty"`
	QueuedBatches  int              `json:"queuedBatches"`
	Log            []string         `json:"log"`
	LastError      string           `json:"lastError,omitempty"`
}

// Field returns both sides' raw field slots.
func (v SessionView) Field() BySide[[]FieldSlot] {
	return BySide[[]FieldSlot]{Player: v.Player.Slots, Enemy: v.Enemy.Slots}
}

// Side returns the view of side.
func (v SessionView) Side(side Side) SideView {
	if side == SideEnemy {
		return v.Enemy
	}
	return v.Player
}

func (st *State) sideView(side Side) SideView {
	piles := st.Piles.Piles(side)
	stats := st.Stats.Get(side)
	view := SideView{
		Deck:    piles.Deck,
		Hand:    piles.Hand,
		Discard: piles.Discard,
		Field:   st.Piles.Slots(side),
		Slots:   st.Piles.Field(side),
		Effects: st.Effects.Sorted(side),
		Stats:   stats,
		Delta:   st.Delta.Get(side),
		Frozen:  st.Effects.Frozen(side),
	}
	if hp, ok := stats.CurrentHP(); ok {
		view.HP = Some(hp)
	}
	return view
}
