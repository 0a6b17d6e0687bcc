package bus

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/agentware/maestro/internal/common/logger"
)

// MemoryEventBus is the in-process EventBus. Each subscription has its own
// buffered queue drained by one worker, so delivery order per subscription
// matches publish order and a slow handler delays only its own queue.
type MemoryEventBus struct {
	mu     sync.RWMutex
	subs   map[string][]*memorySubscription
	queues map[string]*queueGroup
	closed bool
	logger *logger.Logger
}

type memorySubscription struct {
	bus     *MemoryEventBus
	subject string
	pattern *regexp.Regexp
	queue   string
	handler Handler

	deliveries chan *Envelope
	done       chan struct{}
	once       sync.Once
}

// queueGroup rotates deliveries across its members.
type queueGroup struct {
	mu      sync.Mutex
	members []*memorySubscription
	next    int
}

// NewMemoryEventBus creates an in-memory event bus.
func NewMemoryEventBus(log *logger.Logger) *MemoryEventBus {
	return &MemoryEventBus{
		subs:   make(map[string][]*memorySubscription),
		queues: make(map[string]*queueGroup),
		logger: log.WithFields(zap.String("component", "memory-bus")),
	}
}

// Publish delivers the envelope to every matching subscription and to one
// member of every matching queue group.
func (b *MemoryEventBus) Publish(ctx context.Context, subject string, envelope *Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("event bus is closed")
	}

	seenQueues := make(map[string]bool)
	for pattern, subs := range b.subs {
		if !subjectMatches(subject, pattern) {
			continue
		}
		for _, sub := range subs {
			if sub.queue != "" {
				key := sub.queue + ":" + pattern
				if !seenQueues[key] {
					seenQueues[key] = true
					if group, ok := b.queues[key]; ok {
						group.deliver(envelope)
					}
				}
				continue
			}
			sub.enqueue(envelope)
		}
	}

	b.logger.Debug("published envelope",
		zap.String("subject", subject),
		zap.String("type", envelope.Type))
	return nil
}

// Subscribe attaches a handler to a subject pattern.
func (b *MemoryEventBus) Subscribe(subject string, handler Handler) (Subscription, error) {
	return b.subscribe(subject, "", handler)
}

// QueueSubscribe attaches a handler to a queue group on the pattern.
func (b *MemoryEventBus) QueueSubscribe(subject, queue string, handler Handler) (Subscription, error) {
	if queue == "" {
		return nil, fmt.Errorf("queue name required")
	}
	return b.subscribe(subject, queue, handler)
}

func (b *MemoryEventBus) subscribe(subject, queue string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("event bus is closed")
	}

	sub := &memorySubscription{
		bus:        b,
		subject:    subject,
		pattern:    compilePattern(subject),
		queue:      queue,
		handler:    handler,
		deliveries: make(chan *Envelope, 64),
		done:       make(chan struct{}),
	}
	b.subs[subject] = append(b.subs[subject], sub)
	if queue != "" {
		key := queue + ":" + subject
		group, ok := b.queues[key]
		if !ok {
			group = &queueGroup{}
			b.queues[key] = group
		}
		group.mu.Lock()
		group.members = append(group.members, sub)
		group.mu.Unlock()
	}
	go sub.run()
	return sub, nil
}

// Close deactivates every subscription.
func (b *MemoryEventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.stop()
		}
	}
	b.subs = make(map[string][]*memorySubscription)
	b.queues = make(map[string]*queueGroup)
	b.logger.Info("memory event bus closed")
}

// IsConnected reports whether the bus is still open.
func (b *MemoryEventBus) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

func (s *memorySubscription) run() {
	for {
		select {
		case envelope := <-s.deliveries:
			if err := s.handler(context.Background(), envelope); err != nil {
				s.bus.logger.Error("handler error",
					zap.String("subject", s.subject),
					zap.Error(err))
			}
		case <-s.done:
			return
		}
	}
}

// enqueue hands the envelope to the subscription's worker; a full queue
// drops the envelope rather than stalling the publisher.
func (s *memorySubscription) enqueue(envelope *Envelope) {
	select {
	case <-s.done:
	case s.deliveries <- envelope:
	default:
		s.bus.logger.Warn("subscription queue full, dropping envelope",
			zap.String("subject", s.subject),
			zap.String("type", envelope.Type))
	}
}

func (s *memorySubscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// Unsubscribe detaches the subscription from the bus.
func (s *memorySubscription) Unsubscribe() error {
	s.stop()

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	subs := s.bus.subs[s.subject]
	for i, candidate := range subs {
		if candidate == s {
			s.bus.subs[s.subject] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if s.queue != "" {
		if group, ok := s.bus.queues[s.queue+":"+s.subject]; ok {
			group.mu.Lock()
			for i, candidate := range group.members {
				if candidate == s {
					group.members = append(group.members[:i], group.members[i+1:]...)
					break
				}
			}
			group.mu.Unlock()
		}
	}
	return nil
}

// IsValid reports whether the subscription still receives envelopes.
func (s *memorySubscription) IsValid() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// deliver hands the envelope to the next live member, round-robin.
func (g *queueGroup) deliver(envelope *Envelope) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := 0; i < len(g.members); i++ {
		idx := (g.next + i) % len(g.members)
		member := g.members[idx]
		if member.IsValid() {
			g.next = (idx + 1) % len(g.members)
			member.enqueue(envelope)
			return
		}
	}
}

// subjectMatches applies NATS wildcard semantics to a concrete subject.
func subjectMatches(subject, pattern string) bool {
	if !strings.ContainsAny(pattern, "*>") {
		return subject == pattern
	}
	regex := compilePattern(pattern)
	return regex != nil && regex.MatchString(subject)
}

// compilePattern turns a NATS-style pattern into an anchored regexp;
// literal subjects compile to nil.
func compilePattern(pattern string) *regexp.Regexp {
	if !strings.ContainsAny(pattern, "*>") {
		return nil
	}
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, `[^.]+`)
	escaped = strings.ReplaceAll(escaped, `>`, `.+`)
	regex, err := regexp.Compile("^" + escaped + "$")
	if err != nil {
		return nil
	}
	return regex
}
