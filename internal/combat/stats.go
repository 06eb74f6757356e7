package combat

// hpPerVitality converts vitality into hit points when no HP is reported.
const hpPerVitality = 100

// CombatantStats are a side's numeric attributes. Any field may be unknown.
type CombatantStats struct {
	HP                Optional[int] `json:"hp,omitzero" yaml:"-"`
	Vitality          Optional[int] `json:"vitality,omitzero" yaml:"-"`
	SP                Optional[int] `json:"sp,omitzero" yaml:"-"`
	MaxSP             Optional[int] `json:"maxSp,omitzero" yaml:"-"`
	AttackPower       Optional[int] `json:"attackPower,omitzero" yaml:"-"`
	PhysicalPower     Optional[int] `json:"physicalPower,omitzero" yaml:"-"`
	SupernaturalPower Optional[int] `json:"supernaturalPower,omitzero" yaml:"-"`
	Defense           Optional[int] `json:"defense,omitzero" yaml:"-"`
	Speed             Optional[int] `json:"speed,omitzero" yaml:"-"`
}

// CurrentHP resolves hit points, deriving them from vitality when needed.
func (s CombatantStats) CurrentHP() (int, bool) {
	if hp, ok := s.HP.Get(); ok {
		return hp, true
	}
	if v, ok := s.Vitality.Get(); ok {
		return v * hpPerVitality, true
	}
	return 0, false
}

// Dead reports whether hit points are known and exhausted.
func (s CombatantStats) Dead() bool {
	hp, ok := s.CurrentHP()
	return ok && hp <= 0
}

// Fill returns s with unknown fields taken from other.
func (s CombatantStats) Fill(other CombatantStats) CombatantStats {
	return CombatantStats{
		HP:                s.HP.Or(other.HP),
		Vitality:          s.Vitality.Or(other.Vitality),
		SP:                s.SP.Or(other.SP),
		MaxSP:             s.MaxSP.Or(other.MaxSP),
		AttackPower:       s.AttackPower.Or(other.AttackPower),
		PhysicalPower:     s.PhysicalPower.Or(other.PhysicalPower),
		SupernaturalPower: s.SupernaturalPower.Or(other.SupernaturalPower),
		Defense:           s.Defense.Or(other.Defense),
		Speed:             s.Speed.Or(other.Speed),
	}
}

// mergeStats applies a side result over prev. HP prefers an explicit hp,
// then hpRemaining, then the previous value, then vitality.
func mergeStats(prev CombatantStats, r SideResult) CombatantStats {
	next := CombatantStats{
		Vitality:          r.Vitality.Or(prev.Vitality),
		SP:                r.SP.Or(prev.SP),
		MaxSP:             r.MaxSP.Or(prev.MaxSP),
		AttackPower:       r.AttackPower.Or(prev.AttackPower),
		PhysicalPower:     r.PhysicalPower.Or(prev.PhysicalPower),
		SupernaturalPower: r.SupernaturalPower.Or(prev.SupernaturalPower),
		Defense:           r.Defense.Or(prev.Defense),
		Speed:             r.Speed.Or(prev.Speed),
	}
	next.HP = r.HP.Or(r.HPRemaining).Or(prev.HP)
	if !next.HP.IsSet() {
		if v, ok := next.Vitality.Get(); ok {
			next.HP = Some(v * hpPerVitality)
		}
	}
	return next
}

// StatDelta is the display-only difference between effective and base power.
type StatDelta struct {
	AttackPower       int `json:"attackPower"`
	PhysicalPower     int `json:"physicalPower"`
	SupernaturalPower int `json:"supernaturalPower"`
}

// Zero reports whether every component is zero.
func (d StatDelta) Zero() bool {
	return d == StatDelta{}
}

func computeDelta(base, effective SideResult) StatDelta {
	diff := func(b, e Optional[int]) int {
		return e.Or(b).ValueOr(0) - b.ValueOr(0)
	}
	return StatDelta{
		AttackPower:       diff(base.AttackPower, effective.AttackPower),
		PhysicalPower:     diff(base.PhysicalPower, effective.PhysicalPower),
		SupernaturalPower: diff(base.SupernaturalPower, effective.SupernaturalPower),
	}
}

// StatsEcho is the stats block echoed to the authority with each action.
type StatsEcho struct {
	HP                Optional[int] `json:"hp,omitzero"`
	HPRemaining       Optional[int] `json:"hpRemaining,omitzero"`
	Vitality          Optional[int] `json:"vitality,omitzero"`
	SP                Optional[int] `json:"sp,omitzero"`
	MaxSP             Optional[int] `json:"maxSp,omitzero"`
	AttackPower       Optional[int] `json:"attackPower,omitzero"`
	PhysicalPower     Optional[int] `json:"physicalPower,omitzero"`
	SupernaturalPower Optional[int] `json:"supernaturalPower,omitzero"`
	Defense           Optional[int] `json:"defense,omitzero"`
	Speed             Optional[int] `json:"speed,omitzero"`
}

func playerEcho(s CombatantStats) *StatsEcho {
	hp, ok := s.CurrentHP()
	e := &StatsEcho{
		Vitality:          s.Vitality,
		SP:                s.SP,
		MaxSP:             s.MaxSP,
		AttackPower:       s.AttackPower,
		PhysicalPower:     s.PhysicalPower,
		SupernaturalPower: s.SupernaturalPower,
		Defense:           s.Defense,
		Speed:             s.Speed,
	}
	if ok {
		e.HP, e.HPRemaining = Some(hp), Some(hp)
	}
	return e
}

func enemyEcho(s CombatantStats) *StatsEcho {
	e := &StatsEcho{Vitality: s.Vitality, SP: s.SP, MaxSP: s.MaxSP}
	if hp, ok := s.CurrentHP(); ok {
		e.HPRemaining = Some(hp)
	}
	return e
}

func seedEnemyEcho(s CombatantStats) *StatsEcho {
	return &StatsEcho{Vitality: s.Vitality}
}
