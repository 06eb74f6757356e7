package terminal

import (
	"bytes"
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/emberdeck/combat-client-go/internal/combat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type cannedAuthority struct {
	mu        sync.Mutex
	responses []string
	requests  []combat.TurnRequest
}

func (a *cannedAuthority) PlayTurn(_ context.Context, req combat.TurnRequest) (combat.TurnResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	i := len(a.requests) - 1
	if i >= len(a.responses) {
		return combat.TurnResponse{}, nil
	}
	return combat.DecodeTurnResponse([]byte(a.responses[i]))
}

func spCost(n int) *int { return &n }

func newConsoleSession(t *testing.T, auth combat.Authority) *combat.Session {
	t.Helper()
	logger := zaptest.NewLogger(t)
	sess := combat.NewSession(combat.DefaultSessionConfig(), auth, logger,
		combat.WithRegistry(combat.NewRegistry(combat.NewCounterSequence(1), logger)),
		combat.WithRand(rand.New(rand.NewPCG(1, 1))),
		combat.WithSessionID("console"),
	)
	jab := combat.Card{Name: "Jab", SPCost: spCost(1), Potency: 2}
	guard := combat.Card{Name: "Guard", SPCost: spCost(1)}
	claw := combat.Card{Name: "Claw", SPCost: spCost(1), Potency: 3}
	require.NoError(t, sess.StartFresh(combat.Loadout{
		Hand:  []combat.Card{jab, guard},
		Stats: combat.CombatantStats{HP: combat.Some(100), SP: combat.Some(2), MaxSP: combat.Some(3)},
	}))
	require.NoError(t, sess.LoadOpponent(combat.OpponentProfile{
		ID:       "wolf",
		Name:     "Wolf",
		Vitality: combat.Some(5),
		Deck:     []combat.Card{claw, claw, claw, claw},
	}))
	return sess
}

func TestConsolePlayAndAcknowledge(t *testing.T) {
	auth := &cannedAuthority{responses: []string{
		`{"player":{"hand":[{"instanceId":"2","name":"Guard","spCost":1}],"sp":1},"log":["You play Jab."]}`,
	}}
	sess := newConsoleSession(t, auth)

	var out bytes.Buffer
	in := strings.NewReader("select 1\nplay\nok\nselect 9\nbogus\nquit\nstate\n")
	console := NewConsole(sess, in, &out, zaptest.NewLogger(t))
	require.NoError(t, console.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "WOLF (HP: 500  SP: ?/?)")
	assert.Contains(t, text, "[1]*Jab (1 SP)")
	assert.Contains(t, text, "Selected cost: 1")
	assert.Equal(t, 1, strings.Count(text, ">> You played: Jab  [ok]"))
	assert.Contains(t, text, "You play Jab.")
	assert.Contains(t, text, "Error: enter a card number between 1 and 1")
	assert.Contains(t, text, `Unknown command "bogus"`)
	assert.Equal(t, 5, strings.Count(text, "╔"), "quit stops before the trailing state command")

	require.Len(t, auth.requests, 1)
	assert.Equal(t, combat.ActionPlay, auth.requests[0].Action)
	assert.Len(t, auth.requests[0].SelectedCards, 1)
	assert.Equal(t, 1, sess.View().Player.Stats.SP.ValueOr(0))
}

func TestConsoleRetargetFlow(t *testing.T) {
	auth := &cannedAuthority{responses: []string{
		`{"onField":{
			"player":[{"instanceId":"f1","owner":"player","card":{"name":"Flurry"},"turnsRemaining":2}],
			"enemy":[{"instanceId":"e1","owner":"enemy","card":{"name":"Wall"},"turnsRemaining":2}]},
		  "retargetPrompts":[{"instanceId":"f1","owner":"player","options":[
			{"kind":"character"},{"kind":"field","side":"enemy","instanceId":"e1"}]}]}`,
		`{"log":["Wall is shattered."]}`,
	}}
	sess := newConsoleSession(t, auth)

	var out bytes.Buffer
	console := NewConsole(sess, strings.NewReader(""), &out, zaptest.NewLogger(t))
	ctx := context.Background()

	console.Execute(ctx, "skip")
	text := out.String()
	assert.Contains(t, text, "Choose targets:")
	assert.Contains(t, text, "1) Flurry")
	assert.Contains(t, text, "1. Opponent")
	assert.Contains(t, text, "2. Enemy field: Wall")
	assert.Contains(t, text, "[Flurry 2]")

	out.Reset()
	console.Execute(ctx, "skip")
	assert.Contains(t, out.String(), "Error: targets must be confirmed first")

	out.Reset()
	console.Execute(ctx, "target 1 3")
	assert.Contains(t, out.String(), "Error: enter an option number between 1 and 2")

	console.Execute(ctx, "target 1 2")
	console.Execute(ctx, "confirm")
	out.Reset()
	console.Execute(ctx, "skip")
	assert.Contains(t, out.String(), "Wall is shattered.")

	require.Len(t, auth.requests, 2)
	choices := auth.requests[1].RetargetChoices
	require.Len(t, choices, 1)
	assert.Equal(t, combat.InstanceID("f1"), choices[0].InstanceID)
	assert.Equal(t, combat.TargetRef{Kind: combat.TargetField, Side: combat.SideEnemy, InstanceID: "e1"}, choices[0].TargetRef)
}

func TestConsoleStopsOnCancelledContext(t *testing.T) {
	sess := newConsoleSession(t, &cannedAuthority{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := NewConsole(sess, strings.NewReader("state\n"), &out, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
