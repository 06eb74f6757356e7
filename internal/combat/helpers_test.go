package combat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

func card(name string, cost int) Card {
	return Card{Name: name, SPCost: &cost, Types: StringList{"Physical"}, Potency: 10}
}

func inst(id string, name string, cost int) CardInstance {
	return CardInstance{Card: card(name, cost), InstanceID: InstanceID(id)}
}

func instanceIDs(cards []CardInstance) []InstanceID {
	ids := make([]InstanceID, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.InstanceID)
	}
	return ids
}

// scripted is an Authority that returns canned responses in order and
// remembers every request.
type scripted struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []TurnRequest
}

func (a *scripted) PlayTurn(_ context.Context, req TurnRequest) (TurnResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	i := len(a.requests) - 1
	if i < len(a.errs) && a.errs[i] != nil {
		return TurnResponse{}, a.errs[i]
	}
	if i >= len(a.responses) {
		return TurnResponse{}, nil
	}
	return DecodeTurnResponse([]byte(a.responses[i]))
}

func (a *scripted) last() TurnRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[len(a.requests)-1]
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

// newTestSession returns a session with a three-card player hand, SP 3, and
// an opponent holding three cards with SP 3.
func newTestSession(t *testing.T, auth Authority) *Session {
	t.Helper()
	logger := zaptest.NewLogger(t)
	s := NewSession(DefaultSessionConfig(), auth, logger,
		WithRegistry(NewRegistry(NewCounterSequence(1000), logger)),
		WithSessionID("test-session"),
	)
	s.state.Piles.SetSide(SidePlayer, PileSet{
		Hand: []CardInstance{inst("1", "Jab", 1), inst("2", "Hook", 2), inst("3", "Haymaker", 3)},
		Deck: []CardInstance{inst("4", "Guard", 1)},
	})
	s.state.Piles.SetSide(SideEnemy, PileSet{
		Hand: []CardInstance{inst("x1", "Claw", 1), inst("x2", "Bite", 2), inst("x3", "Howl", 1)},
	})
	s.state.Stats.Player = CombatantStats{HP: Some(1000), SP: Some(3), MaxSP: Some(5)}
	s.state.Stats.Enemy = CombatantStats{HP: Some(800), SP: Some(3), MaxSP: Some(5)}
	s.state.Opponent = &OpponentProfile{ID: "wolf", Name: "Wolf"}
	return s
}
