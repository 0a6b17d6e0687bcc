package session

import (
	"sync"

	"github.com/agentware/maestro/pkg/contract"
)

// Subscriber is an independent cursor into a session's event log. Each
// subscriber is fed by its own pump goroutine, so a slow consumer delays
// only itself and every consumer sees events in log order.
type Subscriber struct {
	session *Session
	ch      chan contract.Event
	notify  chan struct{}
	done    chan struct{}
	once    sync.Once
	cursor  int
}

func newSubscriber(s *Session, fromStart bool) *Subscriber {
	sub := &Subscriber{
		session: s,
		ch:      make(chan contract.Event, s.subscriberBuffer),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if !fromStart {
		sub.cursor = s.logLen()
	}
	s.addSubscriber(sub)
	go sub.pump()
	return sub
}

// Events is the channel the subscriber's events arrive on. It is closed
// after Close.
func (sub *Subscriber) Events() <-chan contract.Event {
	return sub.ch
}

// Close detaches the subscriber from the session. Idempotent.
func (sub *Subscriber) Close() {
	sub.once.Do(func() {
		sub.session.removeSubscriber(sub)
		close(sub.done)
	})
}

// wake nudges the pump; the notify channel holds at most one pending
// nudge since the pump drains the whole log suffix on each pass.
func (sub *Subscriber) wake() {
	select {
	case sub.notify <- struct{}{}:
	default:
	}
}

func (sub *Subscriber) pump() {
	defer close(sub.ch)
	for {
		for _, event := range sub.session.eventsFrom(sub.cursor) {
			select {
			case sub.ch <- event:
				sub.cursor++
			case <-sub.done:
				return
			}
		}
		select {
		case <-sub.notify:
		case <-sub.done:
			return
		}
	}
}
