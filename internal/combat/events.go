package combat

import (
	"sort"
	"sync"
	"time"
)

// EventType indicates the category of a session event.
type EventType string

const (
	EventStateChanged            EventType = "STATE_CHANGED"
	EventTurnSubmitted           EventType = "TURN_SUBMITTED"
	EventTurnApplied             EventType = "TURN_APPLIED"
	EventTurnFailed              EventType = "TURN_FAILED"
	EventTargetsRequested        EventType = "TARGETS_REQUESTED"
	EventPlayedBatchQueued       EventType = "PLAYED_BATCH_QUEUED"
	EventPlayedBatchAcknowledged EventType = "PLAYED_BATCH_ACKNOWLEDGED"
	EventCombatEnded             EventType = "COMBAT_ENDED"
)

// Event is published by a Session after its state changes.
type Event struct {
	Type      EventType
	SessionID string
	Action    Action
	Side      Side
	TurnState TurnState
	Batch     *PlayedBatch
	Prompts   int
	Err       error
	Timestamp time.Time
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, sessionID string) Event {
	return Event{Type: eventType, SessionID: sessionID, Timestamp: time.Now()}
}

// Listener receives every event.
type Listener func(Event)

// TypedListener receives events of one type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus fans session events out to subscribers synchronously.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a single event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to listeners in subscription order. Listeners
// run outside the bus lock and may subscribe or unsubscribe.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	handles := make([]int, 0, len(bus.listeners))
	for h := range bus.listeners {
		handles = append(handles, h)
	}
	sort.Ints(handles)
	all := make([]Listener, 0, len(handles))
	for _, h := range handles {
		all = append(all, bus.listeners[h])
	}
	typed := append([]TypedListener(nil), bus.typedListeners[event.Type]...)
	bus.mu.RUnlock()

	for _, listener := range all {
		listener(event)
	}
	for _, listener := range typed {
		listener.Callback(event)
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}
