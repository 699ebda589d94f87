// Package events carries the typed domain events the sync engine emits
// for consumers outside the core (notification and admin-UI refresh
// logic). The bus is injected into the engine so tests can substitute a
// recording sink.
package events

import (
	"sync"

	"go.uber.org/zap"
)

// Event is implemented by every domain event type.
type Event interface {
	EventName() string
}

// UserJoined is emitted when a member is first mirrored or rejoins.
type UserJoined struct {
	UserID   uint64
	Username string
	Nickname string
	Rejoin   bool // true when the user had a prior (left) record
}

func (UserJoined) EventName() string { return "userJoined" }

// UserLeft is emitted when a member disappears from the remote guild.
// GreetingMessageID carries the pending greeting message reference, if
// any, so the consumer can clean it up externally; zero means none.
type UserLeft struct {
	UserID            uint64
	Username          string
	Nickname          string
	GreetingMessageID uint64
}

func (UserLeft) EventName() string { return "userLeft" }

// UserChangedNickname is emitted when a member's resolved name changes.
type UserChangedNickname struct {
	UserID      uint64
	OldNickname string
	NewNickname string
}

func (UserChangedNickname) EventName() string { return "userChangedNickname" }

// MessageAdded is emitted when a message is indexed for the first time.
type MessageAdded struct {
	MessageID uint64
	ChannelID uint64
	AuthorID  uint64
}

func (MessageAdded) EventName() string { return "messageAdded" }

// MessageUpdated is emitted when an indexed message's edit timestamp
// advances or its thread/pin state changes.
type MessageUpdated struct {
	MessageID uint64
	ChannelID uint64
	AuthorID  uint64
}

func (MessageUpdated) EventName() string { return "messageUpdated" }

// InterestGained is emitted when a user is newly recorded as interested
// in a scheduled event.
type InterestGained struct {
	EventID uint64
	UserID  uint64
}

func (InterestGained) EventName() string { return "interestGained" }

// InterestLost is emitted when a still-resolvable member is no longer
// subscribed to a scheduled event.
type InterestLost struct {
	EventID uint64
	UserID  uint64
}

func (InterestLost) EventName() string { return "interestLost" }

// Bus publishes domain events to interested consumers.
type Bus interface {
	Publish(event Event)
}

// HandlerFunc consumes a published event.
type HandlerFunc func(Event)

// Dispatcher is the production Bus: a fan-out to subscribed handlers.
// Publish never blocks on consumer work; handlers run synchronously in
// subscription order and must hand off anything slow themselves.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []HandlerFunc
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers a handler for all future events.
func (d *Dispatcher) Subscribe(fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers = append(d.handlers, fn)
}

// Publish delivers the event to every subscribed handler.
func (d *Dispatcher) Publish(event Event) {
	d.mu.RLock()
	handlers := d.handlers
	d.mu.RUnlock()

	for _, fn := range handlers {
		fn(event)
	}
}

// LogHandler returns a handler that logs every published event with its
// payload. Subscribed first in production so the log carries a full
// event trail regardless of which consumers are wired.
func LogHandler(logger *zap.Logger) HandlerFunc {
	return func(event Event) {
		logger.Debug("Domain event",
			zap.String("event", event.EventName()),
			zap.Any("payload", event))
	}
}

// Recorder is a Bus that remembers everything published to it. Used by
// tests to assert on emission rules.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish appends the event to the recorded log.
func (r *Recorder) Publish(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)

	return out
}

// Named returns the recorded events with the given name, in order.
func (r *Recorder) Named(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event

	for _, e := range r.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}

	return out
}

// Reset clears the recorded log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}
