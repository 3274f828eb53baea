package outbox

import (
	"context"
	"errors"
)

// ErrClosed is returned when publishing to a bus that has been stopped.
var ErrClosed = errors.New("outbox: bus closed")

// Event is any domain event with a name identifier.
type Event interface {
	EventName() string
}

// Handler processes a published event.
type Handler func(ctx context.Context, e Event) error

// Publisher hands events off to interested subscribers without waiting for them.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers for event names.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
