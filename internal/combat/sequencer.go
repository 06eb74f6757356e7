package combat

import (
	"strings"

	"go.uber.org/zap"
)

// PlayedBatch is a group of cards one side played in a single turn.
type PlayedBatch struct {
	Owner Side           `json:"owner"`
	Cards []CardInstance `json:"cards"`
}

// Observation is what the sequencer needs from a merged response to decide
// whether the opponent played cards.
type Observation struct {
	Action  Action
	Message string
	Hand    Optional[[]CardInstance]
	SP      Optional[int]
	Field   Optional[[]FieldSlot]
	// Minted holds hand ids assigned locally because the authority sent
	// the card without one.
	Minted map[InstanceID]struct{}
}

// MintedIDs returns the ids in hand that do not appear in raw, the cards as
// the authority sent them.
func MintedIDs(raw, hand []CardInstance) map[InstanceID]struct{} {
	sent := make(map[InstanceID]struct{}, len(raw))
	for _, c := range raw {
		if c.InstanceID != "" {
			sent[c.InstanceID] = struct{}{}
		}
	}
	minted := make(map[InstanceID]struct{})
	for _, c := range hand {
		if _, ok := sent[c.InstanceID]; !ok {
			minted[c.InstanceID] = struct{}{}
		}
	}
	return minted
}

// PlaySequencer infers opponent plays and queues played batches for display.
// Only the head of the queue is shown; acknowledging it reveals the next.
type PlaySequencer struct {
	owner     Side
	prevHand  []CardInstance
	prevSP    Optional[int]
	prevField map[InstanceID]struct{}
	queue     []PlayedBatch
	logger    *zap.Logger
}

// NewPlaySequencer creates a sequencer that watches owner's plays.
func NewPlaySequencer(owner Side, logger *zap.Logger) *PlaySequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlaySequencer{owner: owner, prevField: map[InstanceID]struct{}{}, logger: logger}
}

// Baseline records the opponent's hand, SP and field as of the last
// accepted response.
func (p *PlaySequencer) Baseline(hand []CardInstance, field []FieldSlot, sp Optional[int]) {
	p.prevHand = cloneCards(hand)
	p.prevSP = sp
	p.prevField = make(map[InstanceID]struct{}, len(field))
	for _, f := range field {
		p.prevField[f.InstanceID] = struct{}{}
	}
}

// Observe compares the baseline against a response and queues the opponent's
// batch when a play is detected. Bootstrap responses only move the baseline.
func (p *PlaySequencer) Observe(o Observation) (PlayedBatch, bool) {
	batch, played := p.infer(o)
	if played {
		p.Enqueue(batch.Owner, batch.Cards)
	}
	if hand, ok := o.Hand.Get(); ok {
		p.prevHand = cloneCards(hand)
	}
	if o.SP.IsSet() {
		p.prevSP = o.SP
	}
	if field, ok := o.Field.Get(); ok {
		p.prevField = make(map[InstanceID]struct{}, len(field))
		for _, f := range field {
			p.prevField[f.InstanceID] = struct{}{}
		}
	}
	return batch, played
}

func (p *PlaySequencer) infer(o Observation) (PlayedBatch, bool) {
	if o.Action == ActionSeed {
		return PlayedBatch{}, false
	}
	msg := strings.ToLower(o.Message)
	if strings.Contains(msg, "skip") || strings.Contains(msg, "defend") {
		return PlayedBatch{}, false
	}

	var removed []CardInstance
	if hand, ok := o.Hand.Get(); ok {
		still := make(map[InstanceID]struct{}, len(hand))
		for _, c := range hand {
			still[c.InstanceID] = struct{}{}
		}
		var missing []CardInstance
		for _, c := range p.prevHand {
			if _, ok := still[c.InstanceID]; !ok {
				missing = append(missing, c)
			}
		}
		// Cards re-sent without ids got fresh ones; pair them up by name.
		for _, c := range hand {
			if _, ok := o.Minted[c.InstanceID]; !ok {
				continue
			}
			for i, m := range missing {
				if m.Name == c.Name {
					missing = append(missing[:i], missing[i+1:]...)
					break
				}
			}
		}
		for _, c := range missing {
			removed = append(removed, c.Clone())
		}
	}
	if len(removed) == 0 {
		return PlayedBatch{}, false
	}

	prevSP, prevKnown := p.prevSP.Get()
	nextSP, nextKnown := o.SP.Get()
	spDropped := prevKnown && nextKnown && nextSP < prevSP
	drained := !prevKnown && nextKnown && nextSP == 0

	fieldGrew := false
	if field, ok := o.Field.Get(); ok {
		for _, f := range field {
			if _, seen := p.prevField[f.InstanceID]; !seen {
				fieldGrew = true
				break
			}
		}
	}

	if !spDropped && !drained && !fieldGrew {
		return PlayedBatch{}, false
	}
	return PlayedBatch{Owner: p.owner, Cards: removed}, true
}

// Enqueue appends a batch; empty batches are ignored.
func (p *PlaySequencer) Enqueue(owner Side, cards []CardInstance) bool {
	if len(cards) == 0 {
		return false
	}
	p.queue = append(p.queue, PlayedBatch{Owner: owner, Cards: cloneCards(cards)})
	p.logger.Debug("queued played batch",
		zap.String("owner", string(owner)),
		zap.Int("cards", len(cards)),
		zap.Int("queued", len(p.queue)),
	)
	return true
}

// Current returns the batch being shown.
func (p *PlaySequencer) Current() (PlayedBatch, bool) {
	if len(p.queue) == 0 {
		return PlayedBatch{}, false
	}
	head := p.queue[0]
	return PlayedBatch{Owner: head.Owner, Cards: cloneCards(head.Cards)}, true
}

// Acknowledge dismisses the batch being shown and returns it.
func (p *PlaySequencer) Acknowledge() (PlayedBatch, error) {
	if len(p.queue) == 0 {
		return PlayedBatch{}, ErrNoBatch
	}
	head := p.queue[0]
	p.queue = p.queue[1:]
	return head, nil
}

// Len returns the number of queued batches, including the one shown.
func (p *PlaySequencer) Len() int {
	return len(p.queue)
}
