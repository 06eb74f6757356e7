package combat

import (
	"fmt"
	"strings"
)

// PromptView is an open prompt with its current pick.
type PromptView struct {
	Prompt RetargetPrompt `json:"prompt"`
	Choice TargetRef      `json:"choice"`
}

// IsComplete reports whether the pick is one of the prompt's options.
func (p PromptView) IsComplete() bool {
	if len(p.Prompt.Options) == 0 {
		return p.Choice.Kind == TargetCharacter
	}
	for _, o := range p.Prompt.Options {
		if o == p.Choice {
			return true
		}
	}
	return false
}

// Negotiator collects the player's answers to retarget prompts.
type Negotiator struct {
	prompts []RetargetPrompt
	picks   map[InstanceID]TargetRef
}

// NewNegotiator returns a negotiator with nothing open.
func NewNegotiator() *Negotiator {
	return &Negotiator{picks: map[InstanceID]TargetRef{}}
}

// Open replaces the open prompts and seeds each pick with its first option.
// Prompts without options default to the opposing character.
func (n *Negotiator) Open(prompts []RetargetPrompt) {
	n.prompts = clonePrompts(prompts)
	n.picks = make(map[InstanceID]TargetRef, len(prompts))
	for _, p := range n.prompts {
		if len(p.Options) > 0 {
			n.picks[p.InstanceID] = p.Options[0]
		} else {
			n.picks[p.InstanceID] = TargetRef{Kind: TargetCharacter}
		}
	}
}

// Pending returns the number of open prompts.
func (n *Negotiator) Pending() int {
	return len(n.prompts)
}

// Pick overrides the default for one prompt.
func (n *Negotiator) Pick(id InstanceID, ref TargetRef) error {
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	for _, p := range n.prompts {
		if p.InstanceID != id {
			continue
		}
		view := PromptView{Prompt: p, Choice: ref}
		if !view.IsComplete() {
			return ErrInvalidTarget
		}
		n.picks[id] = ref
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownPrompt, id)
}

// Views returns the open prompts with their picks, in prompt order.
func (n *Negotiator) Views() []PromptView {
	out := make([]PromptView, 0, len(n.prompts))
	for _, p := range n.prompts {
		out = append(out, PromptView{Prompt: p, Choice: n.picks[p.InstanceID]})
	}
	return out
}

// Confirm turns every pick into a choice and closes the prompts.
func (n *Negotiator) Confirm() ([]RetargetChoice, error) {
	if len(n.prompts) == 0 {
		return nil, ErrNoPrompts
	}
	choices := make([]RetargetChoice, 0, len(n.prompts))
	for _, v := range n.Views() {
		if !v.IsComplete() {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedPrompts, v.Prompt.InstanceID)
		}
		choices = append(choices, RetargetChoice{
			Owner:      v.Prompt.Owner,
			InstanceID: v.Prompt.InstanceID,
			TargetRef:  v.Choice,
		})
	}
	n.Cancel()
	return choices, nil
}

// Cancel discards the open prompts and picks.
func (n *Negotiator) Cancel() {
	n.prompts = nil
	n.picks = map[InstanceID]TargetRef{}
}

// LabelTarget renders a target for display, naming field cards by the card
// occupying the slot.
func LabelTarget(ref TargetRef, field BySide[[]FieldSlot]) string {
	if ref.Kind != TargetField {
		return "Opponent"
	}
	name := string(ref.InstanceID)
	for _, slot := range field.Get(ref.Side) {
		if slot.InstanceID == ref.InstanceID {
			name = slot.Name()
			break
		}
	}
	owner := "Enemy"
	if ref.Side == SidePlayer {
		owner = "Your"
	}
	return fmt.Sprintf("%s field: %s", owner, strings.TrimSpace(name))
}
