package runtime

import (
	"sync"
	"time"
)

type EventType string

const (
	EventStepStart        EventType = "step_start"
	EventStepEnd          EventType = "step_end"
	EventToolCallStart    EventType = "tool_call_start"
	EventToolCallEnd      EventType = "tool_call_end"
	EventProviderRequest  EventType = "provider_request"
	EventProviderResponse EventType = "provider_response"
	EventGuardViolation   EventType = "guard_violation"
	EventHint             EventType = "hint"
	EventAnswer           EventType = "answer"
	EventSessionComplete  EventType = "session_complete"
	EventSessionError     EventType = "session_error"
)

// Event is something that happened while a session ran. Which fields are
// set depends on Type: tool events carry Tool, hints and answers carry
// Text, provider responses carry Tokens.
type Event struct {
	Type      EventType
	Time      time.Time
	SessionID string
	Step      int
	Tool      string
	Text      string
	Tokens    int
}

type EventHandler func(Event)

// EventBus fans session events out to subscribers. Handlers run
// synchronously on the publishing goroutine.
type EventBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	types   map[EventType]bool // nil means every type
	handler EventHandler
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]subscription)}
}

// Subscribe calls handler for events of the given types, or for every
// event when no type is given. The returned func removes the handler.
func (eb *EventBus) Subscribe(handler EventHandler, types ...EventType) (unsubscribe func()) {
	sub := subscription{handler: handler}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	eb.mu.Lock()
	id := eb.nextID
	eb.nextID++
	eb.subs[id] = sub
	eb.mu.Unlock()

	return func() {
		eb.mu.Lock()
		delete(eb.subs, id)
		eb.mu.Unlock()
	}
}

func (eb *EventBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	eb.mu.RLock()
	handlers := make([]EventHandler, 0, len(eb.subs))
	for _, s := range eb.subs {
		if s.types == nil || s.types[e.Type] {
			handlers = append(handlers, s.handler)
		}
	}
	eb.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
