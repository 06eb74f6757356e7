package combat

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultHandSize is the opening hand size for a freshly loaded opponent.
const DefaultHandSize = 3

// SessionConfig tunes a Session. Zero fields fall back to defaults.
type SessionConfig struct {
	HandSize     int
	MaxSelection int
	FieldSlots   int
	LogLimit     int
}

// DefaultSessionConfig returns the standard encounter rules.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		HandSize:     DefaultHandSize,
		MaxSelection: DefaultMaxSelection,
		FieldSlots:   DefaultFieldSlots,
		LogLimit:     DefaultLogLimit,
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	d := DefaultSessionConfig()
	if c.HandSize <= 0 {
		c.HandSize = d.HandSize
	}
	if c.MaxSelection <= 0 {
		c.MaxSelection = d.MaxSelection
	}
	if c.FieldSlots <= 0 {
		c.FieldSlots = d.FieldSlots
	}
	if c.LogLimit <= 0 {
		c.LogLimit = d.LogLimit
	}
	return c
}

// Authority resolves turns.
type Authority interface {
	PlayTurn(ctx context.Context, req TurnRequest) (TurnResponse, error)
}

// AuthorityFunc adapts a function to Authority.
type AuthorityFunc func(ctx context.Context, req TurnRequest) (TurnResponse, error)

func (f AuthorityFunc) PlayTurn(ctx context.Context, req TurnRequest) (TurnResponse, error) {
	return f(ctx, req)
}

// TurnExchange is one request/response round trip as seen by the session.
type TurnExchange struct {
	SessionID string
	Seq       int
	Action    Action
	Request   TurnRequest
	Response  TurnResponse
	Err       string
	View      SessionView
	StartedAt time.Time
	Duration  time.Duration
}

// TurnRecorder receives every exchange after it completes.
type TurnRecorder interface {
	RecordTurn(ex TurnExchange)
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithRegistry sets the instance registry.
func WithRegistry(r *Registry) SessionOption {
	return func(s *Session) { s.registry = r }
}

// WithRecorder sets the exchange recorder.
func WithRecorder(r TurnRecorder) SessionOption {
	return func(s *Session) { s.recorder = r }
}

// WithRand sets the source used to shuffle opponent decks.
func WithRand(r *rand.Rand) SessionOption {
	return func(s *Session) { s.rng = r }
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// Session drives one encounter against an authority. All methods are safe
// for concurrent use; at most one authority request is outstanding.
type Session struct {
	mu sync.Mutex

	id         string
	cfg        SessionConfig
	auth       Authority
	registry   *Registry
	merger     *Merger
	turn       *TurnController
	negotiator *Negotiator
	sequencer  *PlaySequencer
	bus        *EventBus
	recorder   TurnRecorder
	rng        *rand.Rand
	logger     *zap.Logger

	state     *State
	encounter Encounter
	lastError string
	seq       int
}

// NewSession creates an idle session with empty piles.
func NewSession(cfg SessionConfig, auth Authority, logger *zap.Logger, opts ...SessionOption) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		id:   uuid.NewString(),
		cfg:  cfg.withDefaults(),
		auth: auth,
		bus:  NewEventBus(),
		rng:  rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.With(zap.String("session_id", s.id))
	if s.registry == nil {
		s.registry = NewRegistry(ProcessSequence(), s.logger)
	}
	s.merger = NewMerger(SidePlayer, s.cfg.LogLimit, s.logger)
	s.turn = NewTurnController(s.cfg.MaxSelection, s.logger)
	s.negotiator = NewNegotiator()
	s.sequencer = NewPlaySequencer(SideEnemy, s.logger)
	s.state = NewState(NewPileStore(s.registry, s.cfg.FieldSlots, s.logger))
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Events returns the bus session events are published on.
func (s *Session) Events() *EventBus {
	return s.bus
}

// Registry returns the instance registry used by this session.
func (s *Session) Registry() *Registry {
	return s.registry
}

// View returns a snapshot for rendering.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() SessionView {
	st := s.state
	gate := s.gateLocked()
	cost, _ := selectedCost(st.selectedCards())
	view := SessionView{
		SessionID:      s.id,
		Encounter:      s.encounter,
		Player:         st.sideView(SidePlayer),
		Enemy:          st.sideView(SideEnemy),
		Selected:       append([]InstanceID{}, st.Selected...),
		SelectedCost:   cost,
		TurnState:      s.turn.State().String(),
		Gate:           gate,
		CanSubmit:      gate.Open(),
		Prompts:        s.negotiator.Views(),
		PendingChoices: append([]RetargetChoice{}, st.Choices...),
		QueuedBatches:  s.sequencer.Len(),
		Log:            append([]string{}, st.Log...),
		LastError:      s.lastError,
	}
	if st.Opponent != nil {
		view.OpponentName = st.Opponent.Name
	}
	if b, ok := s.sequencer.Current(); ok {
		view.Played = &b
	}
	return view
}

func (s *Session) gateLocked() Gate {
	st := s.state
	return Gate{
		Frozen:         st.Effects.Frozen(SidePlayer),
		PlayerDead:     st.Stats.Player.Dead(),
		OpponentDead:   st.Stats.Enemy.Dead(),
		NoOpponent:     st.Opponent == nil && !st.Piles.Piles(SideEnemy).Live(),
		InFlight:       s.turn.InFlight(),
		PendingTargets: len(st.Prompts) > 0,
	}
}

// SetEncounter records the campaign, room and opponent being fought.
func (s *Session) SetEncounter(enc Encounter) {
	s.mu.Lock()
	s.encounter = enc
	s.mu.Unlock()
}

// StartFresh resets the player to a starting loadout and clears the rest
// of the board.
func (s *Session) StartFresh(l Loadout) error {
	s.mu.Lock()
	if s.turn.InFlight() {
		s.mu.Unlock()
		return ErrTurnInFlight
	}
	st := NewState(NewPileStore(s.registry, s.cfg.FieldSlots, s.logger))
	st.Piles.SetSide(SidePlayer, PileSet{
		Deck:    s.registry.Instance(l.Deck),
		Hand:    s.registry.Instance(l.Hand),
		Discard: []CardInstance{},
	})
	st.Stats.Player = l.Stats
	st.Opponent = s.state.Opponent
	s.state = st
	s.negotiator.Cancel()
	s.lastError = ""
	s.mu.Unlock()

	s.logger.Info("started fresh combat",
		zap.Int("deck", len(l.Deck)),
		zap.Int("hand", len(l.Hand)),
	)
	s.publish(NewEvent(EventStateChanged, s.id))
	return nil
}

// LoadOpponent installs the opponent profile. When the opponent has no live
// piles its cards are instanced, shuffled and dealt an opening hand;
// otherwise the live piles are kept and only unknown stats are filled in.
func (s *Session) LoadOpponent(p OpponentProfile) error {
	s.mu.Lock()
	if s.turn.InFlight() {
		s.mu.Unlock()
		return ErrTurnInFlight
	}
	st := s.state
	profile := p
	st.Opponent = &profile
	if s.encounter.EnemyID == "" {
		s.encounter.EnemyID = p.ID
	}

	stats := p.Stats
	stats.Vitality = stats.Vitality.Or(p.Vitality)
	live := st.Piles.Piles(SideEnemy).Live()
	if live {
		st.Stats.Enemy = st.Stats.Enemy.Fill(stats)
	} else {
		cards := s.registry.Instance(p.Cards())
		s.rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
		hand, rest := DrawInitialHand(cards, nil, s.cfg.HandSize)
		st.Piles.SetSide(SideEnemy, PileSet{Deck: rest, Hand: hand, Discard: []CardInstance{}})
		st.Piles.ReplaceField(SideEnemy, nil)
		st.Effects.Replace(SideEnemy, nil)
		st.Stats.Enemy = stats
		if hp, ok := stats.CurrentHP(); ok {
			st.Stats.Enemy.HP = Some(hp)
		}
	}
	s.mu.Unlock()

	s.logger.Info("loaded opponent",
		zap.String("enemy_id", p.ID),
		zap.String("name", p.Name),
		zap.Bool("kept_live_piles", live),
	)
	s.publish(NewEvent(EventStateChanged, s.id))
	return nil
}

// ToggleCard adds or removes a hand card from the selection.
func (s *Session) ToggleCard(id InstanceID) error {
	s.mu.Lock()
	st := s.state
	sp := st.Stats.Player.SP.ValueOr(0)
	next, err := s.turn.Toggle(st.Selected, st.Piles.Piles(SidePlayer).Hand, sp, id, s.gateLocked())
	if err == nil {
		st.Selected = next
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Debug("selection rejected", zap.String("instance_id", string(id)), zap.Error(err))
		return err
	}
	s.publish(NewEvent(EventStateChanged, s.id))
	return nil
}

// Bootstrap sends the seed action for enc. The response becomes the
// baseline without producing any played batch.
func (s *Session) Bootstrap(ctx context.Context, enc Encounter) error {
	s.mu.Lock()
	if enc.EnemyID == "" {
		enc.EnemyID = s.encounter.EnemyID
	}
	s.encounter = enc
	s.mu.Unlock()
	return s.submit(ctx, ActionSeed)
}

// Play submits the selected cards.
func (s *Session) Play(ctx context.Context) error {
	return s.submit(ctx, ActionPlay)
}

// Skip passes the turn.
func (s *Session) Skip(ctx context.Context) error {
	return s.submit(ctx, ActionSkip)
}

// Defend spends the turn defending.
func (s *Session) Defend(ctx context.Context) error {
	return s.submit(ctx, ActionDefend)
}

// PickTarget overrides the default target of an open prompt.
func (s *Session) PickTarget(id InstanceID, ref TargetRef) error {
	s.mu.Lock()
	err := s.negotiator.Pick(id, ref)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(NewEvent(EventStateChanged, s.id))
	return nil
}

// ConfirmTargets turns the open prompts into choices sent with the next
// submission and unblocks the turn.
func (s *Session) ConfirmTargets() error {
	s.mu.Lock()
	choices, err := s.negotiator.Confirm()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state.Choices = append(s.state.Choices, choices...)
	s.state.Prompts = []RetargetPrompt{}
	s.turn.TargetsResolved()
	s.mu.Unlock()

	s.logger.Debug("confirmed retarget choices", zap.Int("choices", len(choices)))
	s.publish(NewEvent(EventStateChanged, s.id))
	return nil
}

// CancelTargets discards the open prompts and picks.
func (s *Session) CancelTargets() error {
	s.mu.Lock()
	if s.negotiator.Pending() == 0 && len(s.state.Prompts) == 0 {
		s.mu.Unlock()
		return ErrNoPrompts
	}
	s.negotiator.Cancel()
	s.state.Prompts = []RetargetPrompt{}
	s.turn.TargetsResolved()
	s.mu.Unlock()

	s.publish(NewEvent(EventStateChanged, s.id))
	return nil
}

// Acknowledge dismisses the played batch being shown.
func (s *Session) Acknowledge() (PlayedBatch, error) {
	s.mu.Lock()
	batch, err := s.sequencer.Acknowledge()
	s.mu.Unlock()
	if err != nil {
		return PlayedBatch{}, err
	}
	ev := NewEvent(EventPlayedBatchAcknowledged, s.id)
	ev.Side = batch.Owner
	ev.Batch = &batch
	s.publish(ev)
	s.publish(NewEvent(EventStateChanged, s.id))
	return batch, nil
}

func (s *Session) preflightLocked(action Action, gate Gate) error {
	if action == ActionSeed {
		if gate.InFlight {
			return ErrTurnInFlight
		}
		return nil
	}
	if err := gate.Err(); err != nil {
		return err
	}
	if action != ActionPlay {
		return nil
	}
	cards := s.state.selectedCards()
	if len(cards) == 0 {
		return ErrEmptySelection
	}
	cost, ok := selectedCost(cards)
	if !ok || cost > s.state.Stats.Player.SP.ValueOr(0) {
		return ErrInsufficientSP
	}
	return nil
}

func (s *Session) submit(ctx context.Context, action Action) error {
	s.mu.Lock()
	gate := s.gateLocked()
	err := s.preflightLocked(action, gate)
	if err == nil {
		err = s.turn.BeginSubmit(action, gate)
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Debug("turn rejected", zap.String("action", string(action)), zap.Error(err))
		return err
	}

	req := s.buildRequestLocked(action)
	var played []CardInstance
	if action == ActionPlay {
		for _, c := range s.state.selectedCards() {
			played = append(played, SanitizeForPlay(c))
		}
	}
	enemy := s.state.Piles.Piles(SideEnemy)
	s.sequencer.Baseline(enemy.Hand, s.state.Piles.Field(SideEnemy), s.state.Stats.Enemy.SP)
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	submitted := NewEvent(EventTurnSubmitted, s.id)
	submitted.Action = action
	submitted.TurnState = TurnSubmitting
	s.publish(submitted)

	s.logger.Info("submitting turn",
		zap.String("action", string(action)),
		zap.Int("seq", seq),
		zap.Int("selected", len(req.SelectedCards)),
		zap.Int("choices", len(req.RetargetChoices)),
	)

	// A request that has been sent is always merged, so caller cancellation
	// does not abort it; transports bound it with their own timeout.
	started := time.Now()
	resp, err := s.auth.PlayTurn(context.WithoutCancel(ctx), req)
	if err == nil && resp.Error != "" {
		err = errors.New(string(resp.Error))
	}
	ex := TurnExchange{
		SessionID: s.id,
		Seq:       seq,
		Action:    action,
		Request:   req,
		Response:  resp,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	if err != nil {
		return s.fail(ex, err)
	}
	s.apply(ex, played)
	return nil
}

func (s *Session) fail(ex TurnExchange, cause error) error {
	aerr := &AuthorityError{Action: ex.Action, Err: cause}

	s.mu.Lock()
	s.turn.Fail()
	s.lastError = cause.Error()
	s.state.Log = appendLog(s.state.Log, []string{"Error: " + cause.Error()}, s.cfg.LogLimit)
	ex.Err = cause.Error()
	ex.View = s.viewLocked()
	s.mu.Unlock()

	s.logger.Warn("turn failed",
		zap.String("action", string(ex.Action)),
		zap.Int("seq", ex.Seq),
		zap.Duration("duration", ex.Duration),
		zap.Error(cause),
	)
	s.record(ex)

	failed := NewEvent(EventTurnFailed, s.id)
	failed.Action = ex.Action
	failed.Err = aerr
	s.publish(failed)
	s.publish(NewEvent(EventStateChanged, s.id))
	return aerr
}

func (s *Session) apply(ex TurnExchange, played []CardInstance) {
	resp := ex.Response
	var events []Event

	s.mu.Lock()
	s.turn.BeginApply()
	prev := s.state
	next, report := s.merger.Merge(prev, resp)
	s.state = next

	if ex.Action == ActionSeed {
		enemy := next.Piles.Piles(SideEnemy)
		s.sequencer.Baseline(enemy.Hand, next.Piles.Field(SideEnemy), next.Stats.Enemy.SP)
	} else {
		obs := Observation{Action: ex.Action}
		if r, ok := resp.Enemy.Get(); ok {
			obs.Message = r.Message
			obs.SP = r.SP
			if raw, ok := r.Hand.Get(); ok {
				hand := next.Piles.Piles(SideEnemy).Hand
				obs.Hand = Some(hand)
				obs.Minted = MintedIDs(raw, hand)
			}
		}
		if field, ok := resp.OnField.Get(); ok {
			obs.Field = Some(field.Enemy)
		}
		if batch, ok := s.sequencer.Observe(obs); ok {
			ev := NewEvent(EventPlayedBatchQueued, s.id)
			ev.Side = batch.Owner
			ev.Batch = &batch
			events = append(events, ev)
		}
		if ex.Action == ActionPlay && s.sequencer.Enqueue(SidePlayer, played) {
			batch := PlayedBatch{Owner: SidePlayer, Cards: cloneCards(played)}
			ev := NewEvent(EventPlayedBatchQueued, s.id)
			ev.Side = SidePlayer
			ev.Batch = &batch
			events = append(events, ev)
		}
	}

	if report.PromptsReplaced {
		s.negotiator.Open(next.Prompts)
		if len(next.Prompts) > 0 {
			ev := NewEvent(EventTargetsRequested, s.id)
			ev.Prompts = len(next.Prompts)
			events = append(events, ev)
		}
	}
	s.turn.Finish(len(next.Prompts) > 0)
	s.lastError = ""

	for _, side := range []Side{SidePlayer, SideEnemy} {
		if !prev.Stats.Get(side).Dead() && next.Stats.Get(side).Dead() {
			ev := NewEvent(EventCombatEnded, s.id)
			ev.Side = side
			events = append(events, ev)
		}
	}
	ex.View = s.viewLocked()
	state := s.turn.State()
	s.mu.Unlock()

	s.logger.Info("applied turn",
		zap.String("action", string(ex.Action)),
		zap.Int("seq", ex.Seq),
		zap.Strings("keys", report.Keys),
		zap.Duration("duration", ex.Duration),
		zap.String("turn_state", state.String()),
	)
	s.record(ex)

	applied := NewEvent(EventTurnApplied, s.id)
	applied.Action = ex.Action
	applied.TurnState = state
	s.publish(applied)
	s.bus.PublishBatch(events)
	s.publish(NewEvent(EventStateChanged, s.id))
}

func (s *Session) buildRequestLocked(action Action) TurnRequest {
	st := s.state
	player := st.Piles.Piles(SidePlayer)
	enemy := st.Piles.Piles(SideEnemy)

	req := TurnRequest{
		Action:        action,
		CampaignID:    s.encounter.CampaignID,
		RoomID:        s.encounter.RoomID,
		EnemyID:       s.encounter.EnemyID,
		SelectedCards: []InstanceID{},
		Hand:          player.Hand,
		Deck:          player.Deck,
		DiscardPile:   player.Discard,
		EnemyHand:     enemy.Hand,
		EnemyDeck:     enemy.Deck,
		EnemyDiscard:  enemy.Discard,
		OnField: BySide[[]FieldSlot]{
			Player: st.Piles.Field(SidePlayer),
			Enemy:  st.Piles.Field(SideEnemy),
		},
		ActiveEffects: BySide[[]EffectEntry]{
			Player: st.Effects.Entries(SidePlayer),
			Enemy:  st.Effects.Entries(SideEnemy),
		},
		RetargetChoices: append([]RetargetChoice{}, st.Choices...),
	}
	if st.Opponent != nil && st.Opponent.ID != "" {
		req.EnemyID = st.Opponent.ID
	}

	switch action {
	case ActionSeed:
		req.Seed = true
		req.EnemyStats = seedEnemyEcho(st.Stats.Enemy)
	case ActionPlay:
		req.SelectedCards = append(req.SelectedCards, st.Selected...)
		fallthrough
	default:
		req.PlayerStats = playerEcho(st.Stats.Player)
		req.EnemyStats = enemyEcho(st.Stats.Enemy)
	}
	return req
}

func (s *Session) record(ex TurnExchange) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordTurn(ex)
}

func (s *Session) publish(ev Event) {
	s.bus.Publish(ev)
}
