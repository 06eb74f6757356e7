// Package mcp exposes an encounter as MCP tools so an agent can play it.
package mcp

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/emberdeck/combat-client-go/internal/combat"
)

// EventView is a session event as presented in tool responses.
type EventView struct {
	Type   string   `json:"type"`
	Side   string   `json:"side,omitempty"`
	Action string   `json:"action,omitempty"`
	Cards  []string `json:"cards,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// ToolResponse is the JSON envelope returned by all tools.
type ToolResponse struct {
	Events   []EventView         `json:"events"`
	State    *combat.SessionView `json:"state,omitempty"`
	GameOver bool                `json:"game_over"`
	Winner   string              `json:"winner,omitempty"`
}

// ToolSession pairs a combat session with the events raised since the last
// tool call.
type ToolSession struct {
	session *combat.Session

	mu     sync.Mutex
	events []EventView
	handle int
}

// NewToolSession subscribes to session's events.
func NewToolSession(session *combat.Session) *ToolSession {
	ts := &ToolSession{session: session}
	ts.handle = session.Events().Subscribe(ts.observe)
	return ts
}

// Close stops collecting events.
func (ts *ToolSession) Close() {
	ts.session.Events().Unsubscribe(ts.handle)
}

func (ts *ToolSession) observe(ev combat.Event) {
	// State changes accompany every other event and only add noise.
	if ev.Type == combat.EventStateChanged {
		return
	}
	view := EventView{Type: string(ev.Type), Side: string(ev.Side), Action: string(ev.Action)}
	if ev.Batch != nil {
		for _, c := range ev.Batch.Cards {
			view.Cards = append(view.Cards, c.Name)
		}
	}
	if ev.Err != nil {
		view.Error = ev.Err.Error()
	}
	ts.mu.Lock()
	ts.events = append(ts.events, view)
	ts.mu.Unlock()
}

func (ts *ToolSession) drainEvents() []EventView {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	events := ts.events
	ts.events = nil
	if events == nil {
		events = []EventView{}
	}
	return events
}

// response builds the envelope for the current state.
func (ts *ToolSession) response() *ToolResponse {
	view := ts.session.View()
	resp := &ToolResponse{Events: ts.drainEvents(), State: &view}
	switch {
	case view.Gate.OpponentDead:
		resp.GameOver, resp.Winner = true, string(combat.SidePlayer)
	case view.Gate.PlayerDead:
		resp.GameOver, resp.Winner = true, string(combat.SideEnemy)
	}
	return resp
}

// respondJSON marshals a ToolResponse to a JSON string.
func respondJSON(resp *ToolResponse) string {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Sprintf(`{"error": "marshal error: %v"}`, err)
	}
	return string(data)
}
