package combat

import (
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Sequence mints instance ids.
type Sequence interface {
	Next() InstanceID
	// Observe tells the sequence about an id minted elsewhere so Next never
	// collides with it.
	Observe(id InstanceID)
}

// CounterSequence is a monotonically increasing numeric Sequence.
type CounterSequence struct {
	next atomic.Uint64
}

// NewCounterSequence returns a sequence whose first id is start.
func NewCounterSequence(start uint64) *CounterSequence {
	s := &CounterSequence{}
	s.next.Store(start)
	return s
}

func (s *CounterSequence) Next() InstanceID {
	n := s.next.Add(1) - 1
	return InstanceID(strconv.FormatUint(n, 10))
}

func (s *CounterSequence) Observe(id InstanceID) {
	n, err := strconv.ParseUint(string(id), 10, 64)
	if err != nil {
		return
	}
	for {
		cur := s.next.Load()
		if n < cur {
			return
		}
		if s.next.CompareAndSwap(cur, n+1) {
			return
		}
	}
}

var processSequence = sync.OnceValue(func() *CounterSequence {
	return NewCounterSequence(1)
})

// ProcessSequence returns the sequence shared by every session in this process.
func ProcessSequence() Sequence {
	return processSequence()
}

// Registry gives every card copy a stable instance id.
type Registry struct {
	seq    Sequence
	logger *zap.Logger
}

// NewRegistry creates a registry backed by seq.
func NewRegistry(seq Sequence, logger *zap.Logger) *Registry {
	if seq == nil {
		seq = ProcessSequence()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{seq: seq, logger: logger}
}

// Assign returns card as a new instance with a fresh id.
func (r *Registry) Assign(card Card) CardInstance {
	return CardInstance{Card: card.Clone(), InstanceID: r.seq.Next()}
}

// Instance assigns fresh ids to every card in order.
func (r *Registry) Instance(cards []Card) []CardInstance {
	out := make([]CardInstance, 0, len(cards))
	for _, c := range cards {
		out = append(out, r.Assign(c))
	}
	return out
}

// Normalize assigns ids to entries lacking one and removes later duplicates,
// keeping the first occurrence. The result is never nil.
func (r *Registry) Normalize(cards []CardInstance) []CardInstance {
	out := make([]CardInstance, 0, len(cards))
	seen := make(map[InstanceID]struct{}, len(cards))
	dropped := 0
	for _, c := range cards {
		if c.InstanceID == "" {
			c.InstanceID = r.seq.Next()
		} else {
			r.seq.Observe(c.InstanceID)
		}
		if _, dup := seen[c.InstanceID]; dup {
			dropped++
			continue
		}
		seen[c.InstanceID] = struct{}{}
		out = append(out, c)
	}
	if dropped > 0 {
		r.logger.Debug("dropped duplicate card instances",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(out)),
		)
	}
	return out
}
