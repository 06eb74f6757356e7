package combat

import (
	"errors"
	"fmt"
)

var (
	ErrSelectionLocked   = errors.New("selection is locked")
	ErrSelectionCap      = errors.New("selection limit reached")
	ErrInsufficientSP    = errors.New("not enough SP")
	ErrUnknownCard       = errors.New("card is not in hand")
	ErrEmptySelection    = errors.New("no cards selected")
	ErrFrozen            = errors.New("player is frozen")
	ErrPlayerDead        = errors.New("player is defeated")
	ErrOpponentDead      = errors.New("opponent is defeated")
	ErrNoOpponent        = errors.New("no opponent loaded")
	ErrTurnInFlight      = errors.New("a turn is already in flight")
	ErrPendingTargets    = errors.New("targets must be confirmed first")
	ErrNoPrompts         = errors.New("no retarget prompts are open")
	ErrUnresolvedPrompts = errors.New("not every prompt has a target")
	ErrUnknownPrompt     = errors.New("unknown retarget prompt")
	ErrInvalidTarget     = errors.New("target is not an offered option")
	ErrNoBatch           = errors.New("no played batch is showing")
)

// AuthorityError wraps a failed or rejected authority exchange.
type AuthorityError struct {
	Action Action
	Err    error
}

func (e *AuthorityError) Error() string {
	return fmt.Sprintf("%s turn failed: %v", e.Action, e.Err)
}

func (e *AuthorityError) Unwrap() error {
	return e.Err
}
