// Package bus provides the process event bus session events are
// republished on: in-memory for single-process deployments, NATS when a
// broker URL is configured.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/agentware/maestro/pkg/contract"
)

// Envelope is the message carried on the bus: one session event plus
// transport metadata.
type Envelope struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`   // event kind
	Source    string         `json:"source"` // producing service
	Timestamp time.Time      `json:"timestamp"`
	Event     contract.Event `json:"event"`
}

// Wrap builds an envelope for a session event.
func Wrap(source string, event contract.Event) *Envelope {
	return &Envelope{
		ID:        string(contract.NewEventID()),
		Type:      string(event.Kind),
		Source:    source,
		Timestamp: time.Now().UTC(),
		Event:     event,
	}
}

// SessionSubject is the subject a session's events are published on.
func SessionSubject(id contract.SessionID) string {
	return fmt.Sprintf("maestro.session.%s.events", id)
}

// SubjectAllSessions matches every session's event subject.
const SubjectAllSessions = "maestro.session.*.events"

// Handler consumes an envelope. Delivery per subscription is in publish
// order; a returned error is logged, not retried.
type Handler func(ctx context.Context, envelope *Envelope) error

// Subscription is an active attachment to a subject pattern.
type Subscription interface {
	Unsubscribe() error
	IsValid() bool
}

// EventBus is the transport session events fan out on.
type EventBus interface {
	// Publish delivers the envelope to every matching subscription.
	Publish(ctx context.Context, subject string, envelope *Envelope) error

	// Subscribe attaches a handler to a subject pattern. NATS wildcards
	// apply: '*' matches one token, '>' the rest.
	Subscribe(subject string, handler Handler) (Subscription, error)

	// QueueSubscribe attaches a handler to a queue group; each envelope
	// goes to one member of the group.
	QueueSubscribe(subject, queue string, handler Handler) (Subscription, error)

	// Close tears the bus down; further publishes fail.
	Close()

	// IsConnected reports whether the bus can deliver.
	IsConnected() bool
}
