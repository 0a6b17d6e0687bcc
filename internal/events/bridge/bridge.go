// Package bridge republishes session logs onto the process event bus so
// other services can follow sessions without holding in-process
// subscribers.
package bridge

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/internal/events/bus"
	"github.com/agentware/maestro/internal/orchestrator/session"
	"github.com/agentware/maestro/pkg/contract"
)

// Source identifies this service on bus envelopes.
const Source = "maestro-orchestrator"

// Bridge forwards each attached session's events, in log order, to the
// session's bus subject.
type Bridge struct {
	mu       sync.Mutex
	attached map[contract.SessionID]*session.Subscriber

	bus     bus.EventBus
	manager *session.Manager
	logger  *logger.Logger
}

// New creates a bridge between the session manager and the bus.
func New(eventBus bus.EventBus, manager *session.Manager, log *logger.Logger) *Bridge {
	return &Bridge{
		attached: make(map[contract.SessionID]*session.Subscriber),
		bus:      eventBus,
		manager:  manager,
		logger:   log.WithFields(zap.String("component", "event-bridge")),
	}
}

// Attach starts forwarding the session's log from its first event.
// Attaching twice is a no-op.
func (b *Bridge) Attach(id contract.SessionID) error {
	b.mu.Lock()
	if _, ok := b.attached[id]; ok {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	sub, err := b.manager.Subscribe(id)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.attached[id] = sub
	b.mu.Unlock()

	go b.forward(id, sub)
	return nil
}

// Detach stops forwarding the session's events.
func (b *Bridge) Detach(id contract.SessionID) {
	b.mu.Lock()
	sub, ok := b.attached[id]
	delete(b.attached, id)
	b.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// Close detaches every session.
func (b *Bridge) Close() {
	b.mu.Lock()
	subs := make([]*session.Subscriber, 0, len(b.attached))
	for _, sub := range b.attached {
		subs = append(subs, sub)
	}
	b.attached = make(map[contract.SessionID]*session.Subscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (b *Bridge) forward(id contract.SessionID, sub *session.Subscriber) {
	subject := bus.SessionSubject(id)
	for event := range sub.Events() {
		if err := b.bus.Publish(context.Background(), subject, bus.Wrap(Source, event)); err != nil {
			b.logger.Warn("failed to republish session event",
				zap.String("session_id", string(id)),
				zap.String("kind", string(event.Kind)),
				zap.Error(err))
		}
	}
}
