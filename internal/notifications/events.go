package notifications

import "context"

// Event names pushed to subscribers after a notification changes.
const (
	EventCreated = "notification.created"
	EventRead    = "notification.read"
	EventReadAll = "notification.read_all"
)

// Event describes a change to one user's notifications.
type Event struct {
	Name   string `json:"event"`
	UserID string `json:"user_id"`
	Data   any    `json:"data,omitempty"`
}

// Publisher receives events after the database write has committed. Publishing
// is best effort: implementations log their own failures.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Publishers fans an event out to several publishers in order.
type Publishers []Publisher

// Publish implements Publisher.
func (ps Publishers) Publish(ctx context.Context, event Event) {
	for _, p := range ps {
		if p != nil {
			p.Publish(ctx, event)
		}
	}
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event)

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	f(ctx, event)
}
