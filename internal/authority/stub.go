package authority

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/emberdeck/combat-client-go/internal/catalog"
	"github.com/emberdeck/combat-client-go/internal/combat"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	stubHandSize      = 3
	stubDamageScale   = 10
	stubFieldTickHit  = 5
	abilityMultiHit   = "Multi-Hit"
	abilityGuard      = "Guard"
	abilityStatsUp    = "Stats Up"
	defaultFreezeTurn = 1
)

// StubEngine is a small, stateless rules engine for local play. Everything it
// needs arrives in the request echo; the response is always complete.
type StubEngine struct {
	catalog *catalog.Catalog
	logger  *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewStubEngine creates an engine that serves enemies from cat.
func NewStubEngine(cat *catalog.Catalog, rng *rand.Rand, logger *zap.Logger) *StubEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &StubEngine{catalog: cat, rng: rng, logger: logger}
}

// Enemy returns the catalog opponent with id.
func (e *StubEngine) Enemy(id string) (combat.OpponentProfile, bool) {
	return e.catalog.Enemy(id)
}

// combatant is one side's working copy during resolution.
type combatant struct {
	piles   combat.PileSet
	field   []combat.FieldSlot
	effects []combat.EffectEntry
	stats   combat.CombatantStats
	message string
}

// Resolve plays out one turn.
func (e *StubEngine) Resolve(req combat.TurnRequest) combat.TurnResponse {
	if req.Action == combat.ActionSeed {
		return e.seed(req)
	}

	profile, _ := e.catalog.Enemy(req.EnemyID)
	player := &combatant{
		piles:   combat.PileSet{Deck: req.Deck, Hand: req.Hand, Discard: req.DiscardPile},
		field:   req.OnField.Player,
		effects: tickEffects(req.ActiveEffects.Player),
		stats:   echoStats(req.PlayerStats),
	}
	enemy := &combatant{
		piles:   combat.PileSet{Deck: req.EnemyDeck, Hand: req.EnemyHand, Discard: req.EnemyDiscard},
		field:   req.OnField.Enemy,
		effects: tickEffects(req.ActiveEffects.Enemy),
		stats:   echoStats(req.EnemyStats).Fill(profile.Stats),
	}
	if !enemy.stats.HP.IsSet() {
		if v, ok := enemy.stats.Vitality.Or(profile.Vitality).Get(); ok {
			enemy.stats.HP = combat.Some(v * 100)
		}
	}

	var log []string
	log = append(log, e.applyChoices(req.RetargetChoices, player, enemy)...)
	log = append(log, tickField(player, enemy)...)
	log = append(log, tickField(enemy, player)...)

	defending := false
	var placed []combat.FieldSlot
	switch req.Action {
	case combat.ActionPlay:
		placed = e.playerPlays(req.SelectedCards, player, enemy)
	case combat.ActionDefend:
		defending = true
		player.message = "You defend."
	default:
		player.message = "You skip."
	}

	if !enemy.stats.Dead() {
		e.enemyActs(player, enemy, defending)
	}

	regen(&player.stats)
	e.refill(&player.piles)
	e.refill(&enemy.piles)

	prompts := []combat.RetargetPrompt{}
	if len(enemy.field) > 0 {
		for _, slot := range placed {
			prompts = append(prompts, retargetPrompt(slot, enemy.field))
		}
	}

	if player.stats.Dead() {
		log = append(log, "You have fallen.")
	}
	if enemy.stats.Dead() {
		log = append(log, fmt.Sprintf("%s is defeated.", nameOr(profile.Name, "Enemy")))
	}

	e.logger.Debug("stub turn resolved",
		zap.String("action", string(req.Action)),
		zap.Int("selected", len(req.SelectedCards)),
		zap.Int("prompts", len(prompts)),
	)
	return combat.TurnResponse{
		Player: combat.Some(playerResult(player)),
		Enemy:  combat.Some(enemyResult(enemy)),
		ActiveEffects: combat.Some(combat.BySide[[]combat.EffectEntry]{
			Player: nonNil(player.effects),
			Enemy:  nonNil(enemy.effects),
		}),
		OnField: combat.Some(combat.BySide[[]combat.FieldSlot]{
			Player: nonNil(player.field),
			Enemy:  nonNil(enemy.field),
		}),
		RetargetPrompts: combat.Some(prompts),
		EffectiveStats: combat.Some(combat.BySide[combat.SideResult]{
			Player: effectiveResult(player),
			Enemy:  effectiveResult(enemy),
		}),
		Log: log,
	}
}

func (e *StubEngine) seed(req combat.TurnRequest) combat.TurnResponse {
	profile, ok := e.catalog.Enemy(req.EnemyID)
	if !ok {
		return combat.TurnResponse{Error: combat.ErrorText(fmt.Sprintf("unknown enemy %q", req.EnemyID))}
	}

	enemy := &combatant{
		piles: combat.PileSet{Deck: req.EnemyDeck, Hand: req.EnemyHand, Discard: req.EnemyDiscard},
		stats: profile.Stats,
	}
	if !enemy.piles.Live() {
		deck := make([]combat.CardInstance, 0, len(profile.Cards()))
		for _, c := range profile.Cards() {
			deck = append(deck, combat.CardInstance{Card: c, InstanceID: combat.InstanceID(uuid.NewString())})
		}
		e.shuffle(deck)
		hand, rest := combat.DrawInitialHand(deck, nil, stubHandSize)
		enemy.piles = combat.PileSet{Deck: rest, Hand: hand, Discard: []combat.CardInstance{}}
	}
	vitality := echoStats(req.EnemyStats).Vitality.Or(profile.Vitality)
	enemy.stats.Vitality = vitality
	if v, ok := vitality.Get(); ok {
		enemy.stats.HP = combat.Some(v * 100)
	}

	return combat.TurnResponse{
		Enemy: combat.Some(enemyResult(enemy)),
		OnField: combat.Some(combat.BySide[[]combat.FieldSlot]{
			Player: []combat.FieldSlot{},
			Enemy:  []combat.FieldSlot{},
		}),
		ActiveEffects: combat.Some(combat.BySide[[]combat.EffectEntry]{
			Player: []combat.EffectEntry{},
			Enemy:  []combat.EffectEntry{},
		}),
		Log: []string{fmt.Sprintf("%s appears.", nameOr(profile.Name, "An enemy"))},
	}
}

func (e *StubEngine) playerPlays(ids []combat.InstanceID, player, enemy *combatant) []combat.FieldSlot {
	var names []string
	var placed []combat.FieldSlot
	sp := player.stats.SP.ValueOr(0)
	for _, id := range ids {
		card, ok := takeFromHand(&player.piles, id)
		if !ok {
			continue
		}
		cost, _ := card.Cost()
		sp -= cost
		names = append(names, card.Name)

		damage := card.Potency*stubDamageScale + player.stats.AttackPower.ValueOr(0)
		hit(&enemy.stats, damage-enemy.stats.Defense.ValueOr(0))
		for _, a := range card.Abilities {
			switch a.Type {
			case combat.EffectFreeze:
				enemy.effects = append(enemy.effects, combat.EffectEntry{
					Type: combat.EffectFreeze, Target: "enemy", Remaining: max(a.Duration, defaultFreezeTurn), Precedence: a.Precedence,
				})
			case abilityStatsUp:
				player.effects = append(player.effects, combat.EffectEntry{
					Type: abilityStatsUp, Target: "player", Power: a.Power, Remaining: max(a.Duration, 1), Precedence: a.Precedence,
				})
			}
		}

		if slot, ok := multiHitSlot(card, combat.SidePlayer); ok && len(player.field) < combat.DefaultFieldSlots {
			player.field = append(player.field, slot)
			placed = append(placed, slot)
			continue
		}
		player.piles.Discard = append(player.piles.Discard, card)
	}
	player.stats.SP = combat.Some(max(sp, 0))
	player.message = "You play " + strings.Join(names, ", ") + "."
	return placed
}

func (e *StubEngine) enemyActs(player, enemy *combatant, defending bool) {
	if frozen(enemy.effects) {
		enemy.message = "Enemy is frozen and skips."
		regen(&enemy.stats)
		return
	}
	sp := enemy.stats.SP.ValueOr(0)
	for i, card := range enemy.piles.Hand {
		cost, ok := card.Cost()
		if !ok || cost > sp {
			continue
		}
		enemy.piles.Hand = append(append([]combat.CardInstance{}, enemy.piles.Hand[:i]...), enemy.piles.Hand[i+1:]...)
		enemy.stats.SP = combat.Some(sp - cost)

		damage := card.Potency*stubDamageScale + enemy.stats.AttackPower.ValueOr(0) - player.stats.Defense.ValueOr(0)
		if defending {
			damage /= 2
		}
		if card.Potency > 0 {
			hit(&player.stats, damage)
		}
		if card.HasAbility(abilityGuard) && len(enemy.field) < combat.DefaultFieldSlots {
			enemy.field = append(enemy.field, combat.FieldSlot{
				InstanceID:     card.InstanceID,
				Owner:          combat.SideEnemy,
				Card:           &card.Card,
				TurnsRemaining: guardTurns(card.Card),
			})
		} else {
			enemy.piles.Discard = append(enemy.piles.Discard, card)
		}
		enemy.message = "Enemy plays " + card.Name + "."
		return
	}
	enemy.message = "Enemy skips."
	regen(&enemy.stats)
}

// applyChoices resolves retarget answers; a field target is destroyed.
func (e *StubEngine) applyChoices(choices []combat.RetargetChoice, player, enemy *combatant) []string {
	var log []string
	for _, ch := range choices {
		if ch.TargetRef.Kind != combat.TargetField {
			continue
		}
		victim := enemy
		if ch.TargetRef.Side == combat.SidePlayer {
			victim = player
		}
		for i, slot := range victim.field {
			if slot.InstanceID != ch.TargetRef.InstanceID {
				continue
			}
			victim.field = append(append([]combat.FieldSlot{}, victim.field[:i]...), victim.field[i+1:]...)
			log = append(log, fmt.Sprintf("%s is shattered.", nameOr(slot.Name(), "A field card")))
			break
		}
	}
	return log
}

func (e *StubEngine) refill(p *combat.PileSet) {
	for len(p.Hand) < stubHandSize {
		if len(p.Deck) == 0 {
			if len(p.Discard) == 0 {
				return
			}
			p.Deck, p.Discard = p.Discard, []combat.CardInstance{}
			e.shuffle(p.Deck)
		}
		p.Hand = append(p.Hand, p.Deck[0])
		p.Deck = p.Deck[1:]
	}
}

func (e *StubEngine) shuffle(cards []combat.CardInstance) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
}

// tickField advances owner's field slots; multi-hit slots strike the other
// side as they tick.
func tickField(owner, other *combatant) []string {
	var log []string
	kept := make([]combat.FieldSlot, 0, len(owner.field))
	for _, slot := range owner.field {
		if slot.Card != nil && slot.Link == "attack" {
			hit(&other.stats, slot.Card.Potency*stubFieldTickHit)
			log = append(log, fmt.Sprintf("%s strikes again.", slot.Name()))
		}
		slot.TurnsRemaining--
		if slot.TurnsRemaining > 0 {
			kept = append(kept, slot)
		}
	}
	owner.field = kept
	return log
}

func tickEffects(entries []combat.EffectEntry) []combat.EffectEntry {
	out := make([]combat.EffectEntry, 0, len(entries))
	for _, e := range entries {
		e.Remaining--
		if e.Active() {
			out = append(out, e)
		}
	}
	return out
}

func frozen(entries []combat.EffectEntry) bool {
	for _, e := range entries {
		if e.Type == combat.EffectFreeze && e.Active() {
			return true
		}
	}
	return false
}

func multiHitSlot(card combat.CardInstance, owner combat.Side) (combat.FieldSlot, bool) {
	for _, a := range card.Abilities {
		if a.Type != abilityMultiHit || a.MultiHit == nil || a.MultiHit.Turns <= 0 {
			continue
		}
		c := card.Card.Clone()
		return combat.FieldSlot{
			InstanceID:     card.InstanceID,
			Owner:          owner,
			Card:           &c,
			TurnsRemaining: a.MultiHit.Turns,
			Link:           a.MultiHit.Link,
		}, true
	}
	return combat.FieldSlot{}, false
}

func guardTurns(card combat.Card) int {
	turns := 1
	for _, a := range card.Abilities {
		if a.Type == abilityGuard && a.Duration > turns {
			turns = a.Duration
		}
	}
	return turns
}

func retargetPrompt(slot combat.FieldSlot, enemyField []combat.FieldSlot) combat.RetargetPrompt {
	options := []combat.TargetRef{{Kind: combat.TargetCharacter}}
	for _, f := range enemyField {
		options = append(options, combat.TargetRef{Kind: combat.TargetField, Side: combat.SideEnemy, InstanceID: f.InstanceID})
	}
	return combat.RetargetPrompt{InstanceID: slot.InstanceID, Owner: combat.SidePlayer, Options: options}
}

func takeFromHand(p *combat.PileSet, id combat.InstanceID) (combat.CardInstance, bool) {
	for i, c := range p.Hand {
		if c.InstanceID == id {
			p.Hand = append(append([]combat.CardInstance{}, p.Hand[:i]...), p.Hand[i+1:]...)
			return c, true
		}
	}
	return combat.CardInstance{}, false
}

func hit(stats *combat.CombatantStats, damage int) {
	if damage <= 0 {
		return
	}
	hp, ok := stats.CurrentHP()
	if !ok {
		return
	}
	stats.HP = combat.Some(max(hp-damage, 0))
}

func regen(stats *combat.CombatantStats) {
	sp, ok := stats.SP.Get()
	if !ok {
		return
	}
	if maxSP, ok := stats.MaxSP.Get(); ok && sp >= maxSP {
		return
	}
	stats.SP = combat.Some(sp + 1)
}

func echoStats(e *combat.StatsEcho) combat.CombatantStats {
	if e == nil {
		return combat.CombatantStats{}
	}
	return combat.CombatantStats{
		HP:                e.HP.Or(e.HPRemaining),
		Vitality:          e.Vitality,
		SP:                e.SP,
		MaxSP:             e.MaxSP,
		AttackPower:       e.AttackPower,
		PhysicalPower:     e.PhysicalPower,
		SupernaturalPower: e.SupernaturalPower,
		Defense:           e.Defense,
		Speed:             e.Speed,
	}
}

func playerResult(c *combatant) combat.SideResult {
	return combat.SideResult{
		Hand:              combat.Some(nonNil(c.piles.Hand)),
		Deck:              combat.Some(nonNil(c.piles.Deck)),
		Discard:           combat.Some(nonNil(c.piles.Discard)),
		HP:                c.stats.HP,
		Vitality:          c.stats.Vitality,
		SP:                c.stats.SP,
		MaxSP:             c.stats.MaxSP,
		AttackPower:       c.stats.AttackPower,
		PhysicalPower:     c.stats.PhysicalPower,
		SupernaturalPower: c.stats.SupernaturalPower,
		Defense:           c.stats.Defense,
		Speed:             c.stats.Speed,
		Message:           c.message,
	}
}

func enemyResult(c *combatant) combat.SideResult {
	r := playerResult(c)
	r.HPRemaining, r.HP = r.HP, combat.None[int]()
	return r
}

// effectiveResult reports power after active Stats Up effects.
func effectiveResult(c *combatant) combat.SideResult {
	bonus := 0
	for _, e := range c.effects {
		if e.Type == abilityStatsUp && e.Active() {
			bonus += e.Power
		}
	}
	add := func(v combat.Optional[int]) combat.Optional[int] {
		if n, ok := v.Get(); ok {
			return combat.Some(n + bonus)
		}
		return v
	}
	return combat.SideResult{
		AttackPower:       add(c.stats.AttackPower),
		PhysicalPower:     add(c.stats.PhysicalPower),
		SupernaturalPower: add(c.stats.SupernaturalPower),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
