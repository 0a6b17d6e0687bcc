// Package session implements the session manager: lifecycle, event log,
// subscriber fan-out and the command pipeline.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/pkg/contract"
)

// Session is an isolated unit of work: one workspace, one policy, one
// ordered append-only event log, one worker serializing its commands.
type Session struct {
	mu sync.Mutex

	config        contract.SessionConfig
	status        contract.SessionStatus
	createdAt     time.Time
	workspacePath string

	eventLog    []contract.Event
	subscribers map[*Subscriber]struct{}

	pendingApproval bool
	// testsPassed records a successful run-tests completion since the
	// last commit; the policy enforcer's tests-before-push rule reads it.
	testsPassed bool

	// terminals tracks command ids that already carry a terminal event, so
	// the log never holds two completions for one command.
	terminals map[contract.CommandID]struct{}
	waiters   map[contract.CommandID]chan struct{}

	commands chan *contract.Command

	ctx    context.Context
	cancel context.CancelFunc

	subscriberBuffer int
	logger           *logger.Logger
}

func newSession(cfg contract.SessionConfig, workspacePath string, subscriberBuffer int, log *logger.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		config:           cfg,
		status:           contract.SessionRunning,
		createdAt:        time.Now().UTC(),
		workspacePath:    workspacePath,
		subscribers:      make(map[*Subscriber]struct{}),
		terminals:        make(map[contract.CommandID]struct{}),
		waiters:          make(map[contract.CommandID]chan struct{}),
		commands:         make(chan *contract.Command, 256),
		ctx:              ctx,
		cancel:           cancel,
		subscriberBuffer: subscriberBuffer,
		logger:           log.WithSessionID(string(cfg.SessionID)),
	}
}

// Emit appends an event to the session log and wakes every subscriber.
// The event's correlation is stamped with the session id. A second
// terminal event for a command id is dropped with a warning so the log
// holds exactly one terminal per accepted command.
func (s *Session) Emit(event contract.Event) {
	s.mu.Lock()

	event.Correlation.SessionID = s.config.SessionID

	if id := event.Correlation.CommandID; id != "" && event.IsTerminalFor(id) {
		if _, dup := s.terminals[id]; dup {
			s.mu.Unlock()
			s.logger.Warn("dropping duplicate terminal event",
				zap.String("command_id", string(id)),
				zap.String("kind", string(event.Kind)))
			return
		}
		s.terminals[id] = struct{}{}
		if waiter, ok := s.waiters[id]; ok {
			close(waiter)
			delete(s.waiters, id)
		}
	}

	s.eventLog = append(s.eventLog, event)
	subs := make([]*Subscriber, 0, len(s.subscribers))
	for sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.wake()
	}
}

// Status returns the current session status.
func (s *Session) Status() contract.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Events returns a snapshot of the session log.
func (s *Session) Events() []contract.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contract.Event, len(s.eventLog))
	copy(out, s.eventLog)
	return out
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// WorkspacePath is the directory owned by the session.
func (s *Session) WorkspacePath() string {
	return s.workspacePath
}

// Repo is the session's repository reference.
func (s *Session) Repo() contract.RepoRef {
	return s.config.Repo
}

// WorkItem is the work item bound to the session, if any.
func (s *Session) WorkItem() *contract.WorkItemRef {
	return s.config.WorkItem
}

// Policy is the session's policy profile.
func (s *Session) Policy() contract.PolicyProfile {
	return s.config.Policy
}

// Config is the full session configuration.
func (s *Session) Config() contract.SessionConfig {
	return s.config
}

// Logger is the per-session logger handed to adapters.
func (s *Session) Logger() *logger.Logger {
	return s.logger
}

// Context is cancelled when the session is aborted.
func (s *Session) Context() context.Context {
	return s.ctx
}

// transitionTo moves the session to next if the transition is legal and
// emits the status-changed event. Returns false for an illegal transition.
func (s *Session) transitionTo(next contract.SessionStatus, reason string) bool {
	s.mu.Lock()
	if !s.status.CanTransitionTo(next) {
		current := s.status
		s.mu.Unlock()
		s.logger.Warn("illegal session transition refused",
			zap.String("from", string(current)),
			zap.String("to", string(next)))
		return false
	}
	s.status = next
	s.mu.Unlock()

	event := contract.NewEvent(contract.EventSessionStatusChanged, contract.Correlation{SessionID: s.config.SessionID})
	event.Status = &contract.StatusPayload{Status: next, Reason: reason}
	s.Emit(event)
	return true
}

// approve sets the pending-approval flag.
func (s *Session) approve() {
	s.mu.Lock()
	s.pendingApproval = true
	s.mu.Unlock()
}

// observations snapshots the history the policy enforcer needs.
func (s *Session) observations() (testsPassed, approvalGranted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.testsPassed, s.pendingApproval
}

// recordTestsPassed flips the tests-since-commit flag.
func (s *Session) recordTestsPassed(passed bool) {
	s.mu.Lock()
	s.testsPassed = passed
	s.mu.Unlock()
}

// waitTerminal returns a channel closed once a terminal event exists for
// the command id.
func (s *Session) waitTerminal(id contract.CommandID) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.terminals[id]; done {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	waiter, ok := s.waiters[id]
	if !ok {
		waiter = make(chan struct{})
		s.waiters[id] = waiter
	}
	return waiter
}

// terminalCompletion returns the completion payload for a command id, if
// the terminal event was a completion.
func (s *Session) terminalCompletion(id contract.CommandID) *contract.CompletedPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.eventLog) - 1; i >= 0; i-- {
		e := &s.eventLog[i]
		if e.Kind == contract.EventCommandCompleted && e.Correlation.CommandID == id {
			return e.Completed
		}
	}
	return nil
}

// eventsFrom copies the log suffix starting at cursor.
func (s *Session) eventsFrom(cursor int) []contract.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cursor >= len(s.eventLog) {
		return nil
	}
	out := make([]contract.Event, len(s.eventLog)-cursor)
	copy(out, s.eventLog[cursor:])
	return out
}

func (s *Session) addSubscriber(sub *Subscriber) {
	s.mu.Lock()
	s.subscribers[sub] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) removeSubscriber(sub *Subscriber) {
	s.mu.Lock()
	delete(s.subscribers, sub)
	s.mu.Unlock()
}

// logLen returns the current log length, used for live subscriptions.
func (s *Session) logLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.eventLog)
}
