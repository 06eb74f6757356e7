package combat

import (
	"fmt"

	"go.uber.org/zap"
)

// DefaultMaxSelection is the most cards a single play may include.
const DefaultMaxSelection = 2

// TurnState is the turn controller's position in the submit cycle.
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnAwaitingTargets
	TurnSubmitting
	TurnApplying
)

func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "IDLE"
	case TurnAwaitingTargets:
		return "AWAITING_TARGETS"
	case TurnSubmitting:
		return "SUBMITTING"
	case TurnApplying:
		return "APPLYING"
	default:
		return "UNKNOWN"
	}
}

// Gate lists every condition that can block input.
type Gate struct {
	Frozen         bool `json:"frozen"`
	PlayerDead     bool `json:"playerDead"`
	OpponentDead   bool `json:"opponentDead"`
	NoOpponent     bool `json:"noOpponent"`
	InFlight       bool `json:"inFlight"`
	PendingTargets bool `json:"pendingTargets"`
}

// Err returns the first reason submission is blocked, or nil.
func (g Gate) Err() error {
	switch {
	case g.InFlight:
		return ErrTurnInFlight
	case g.Frozen:
		return ErrFrozen
	case g.PlayerDead:
		return ErrPlayerDead
	case g.OpponentDead:
		return ErrOpponentDead
	case g.NoOpponent:
		return ErrNoOpponent
	case g.PendingTargets:
		return ErrPendingTargets
	}
	return nil
}

// Open reports whether a play, skip or defend may be submitted.
func (g Gate) Open() bool {
	return g.Err() == nil
}

// SelectionLocked reports whether hand selection is disabled.
func (g Gate) SelectionLocked() bool {
	return g.Frozen || g.PlayerDead || g.OpponentDead || g.InFlight || g.PendingTargets
}

// TurnController enforces the selection rules and the submit cycle.
type TurnController struct {
	state        TurnState
	maxSelection int
	logger       *zap.Logger
}

// NewTurnController creates a controller in the idle state.
func NewTurnController(maxSelection int, logger *zap.Logger) *TurnController {
	if maxSelection <= 0 {
		maxSelection = DefaultMaxSelection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TurnController{state: TurnIdle, maxSelection: maxSelection, logger: logger}
}

// State returns the current turn state.
func (c *TurnController) State() TurnState {
	return c.state
}

// InFlight reports whether a request is outstanding or being applied.
func (c *TurnController) InFlight() bool {
	return c.state == TurnSubmitting || c.state == TurnApplying
}

// Toggle adds or removes id from the selection. Additions that would exceed
// the card limit or the available SP are rejected and the selection is
// returned unchanged.
func (c *TurnController) Toggle(selected []InstanceID, hand []CardInstance, sp int, id InstanceID, gate Gate) ([]InstanceID, error) {
	if c.state != TurnIdle || gate.SelectionLocked() {
		return selected, ErrSelectionLocked
	}

	for i, sel := range selected {
		if sel == id {
			out := make([]InstanceID, 0, len(selected)-1)
			out = append(out, selected[:i]...)
			return append(out, selected[i+1:]...), nil
		}
	}

	byID := make(map[InstanceID]CardInstance, len(hand))
	for _, card := range hand {
		byID[card.InstanceID] = card
	}
	if _, ok := byID[id]; !ok {
		return selected, ErrUnknownCard
	}
	if len(selected)+1 > c.maxSelection {
		return selected, ErrSelectionCap
	}

	next := append(append([]InstanceID{}, selected...), id)
	cards := make([]CardInstance, 0, len(next))
	for _, sel := range next {
		cards = append(cards, byID[sel])
	}
	cost, ok := selectedCost(cards)
	if !ok {
		return selected, fmt.Errorf("%w: card has no SP cost", ErrInsufficientSP)
	}
	if cost > sp {
		return selected, fmt.Errorf("%w: need %d, have %d", ErrInsufficientSP, cost, sp)
	}
	return next, nil
}

// BeginSubmit moves to submitting if the gate allows it.
func (c *TurnController) BeginSubmit(action Action, gate Gate) error {
	if c.InFlight() {
		return ErrTurnInFlight
	}
	if action != ActionSeed {
		if err := gate.Err(); err != nil {
			return err
		}
	}
	c.transition(TurnSubmitting)
	return nil
}

// BeginApply marks the response as being merged.
func (c *TurnController) BeginApply() {
	c.transition(TurnApplying)
}

// Finish ends a successful exchange, waiting for targets if any prompt is open.
func (c *TurnController) Finish(promptsOpen bool) {
	if promptsOpen {
		c.transition(TurnAwaitingTargets)
		return
	}
	c.transition(TurnIdle)
}

// Fail returns to idle after a failed exchange.
func (c *TurnController) Fail() {
	c.transition(TurnIdle)
}

// TargetsResolved returns to idle once prompts are confirmed or cancelled.
func (c *TurnController) TargetsResolved() {
	if c.state == TurnAwaitingTargets {
		c.transition(TurnIdle)
	}
}

func (c *TurnController) transition(next TurnState) {
	if c.state == next {
		return
	}
	c.logger.Debug("turn state changed",
		zap.String("from", c.state.String()),
		zap.String("to", next.String()),
	)
	c.state = next
}
