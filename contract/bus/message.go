package bus

import "time"

// Message is implemented by every value routable through the bus.
//
// MessageName returns the declared wire identity of the concrete type. It
// must be a compile-time constant returned by a value-receiver method so
// that renaming the Go type never silently changes wire compatibility, and
// so that a zero value of the type already knows its name.
type Message interface {
	MessageName() string
}

// Command is a request for work with happened-once semantics. A command is
// routed to exactly one handler and evaluated synchronously from the
// caller's point of view.
type Command interface {
	Message
	OccurredAt() time.Time
}

// Event announces a fact that already happened. An event is routed to zero
// or more independently bound handlers, each through its own queue.
type Event interface {
	Message
	OccurredAt() time.Time
}

// Occurrence records the construction instant of a message. Concrete
// commands and events embed it and set it once via NewOccurrence; it is
// never mutated afterwards.
type Occurrence struct {
	Timestamp time.Time `json:"timestamp"`
}

// NewOccurrence captures the current instant in UTC.
func NewOccurrence() Occurrence {
	return Occurrence{Timestamp: time.Now().UTC()}
}

// OccurredAt reports the construction instant.
func (o Occurrence) OccurredAt() time.Time { return o.Timestamp }
