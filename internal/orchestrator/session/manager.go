package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/agentware/maestro/internal/common/errors"
	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/internal/orchestrator/adapter"
	"github.com/agentware/maestro/internal/orchestrator/claims"
	"github.com/agentware/maestro/internal/orchestrator/policy"
	"github.com/agentware/maestro/internal/orchestrator/ratelimit"
	"github.com/agentware/maestro/internal/orchestrator/workspace"
	"github.com/agentware/maestro/pkg/contract"
)

// Config tunes the session manager.
type Config struct {
	// CommandTimeout is the wall-clock ceiling for a single command from
	// acceptance to terminal completion.
	CommandTimeout time.Duration

	// SubscriberBuffer is the channel capacity of each subscriber.
	SubscriberBuffer int

	// Profiles are the named policy profiles sessions may reference by
	// Policy.Name instead of carrying inline rules.
	Profiles map[string]contract.PolicyProfile

	// DefaultProfile names the profile applied to sessions created with an
	// empty policy.
	DefaultProfile string
}

// DefaultConfig returns the manager defaults.
func DefaultConfig() Config {
	return Config{
		CommandTimeout:   2 * time.Minute,
		SubscriberBuffer: 256,
	}
}

// Manager owns every session: it creates them, runs one pipeline worker
// per session and drives lifecycle transitions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[contract.SessionID]*Session

	registry   *adapter.Registry
	limiter    *ratelimit.Limiter
	claims     *claims.Manager
	workspaces *workspace.Provider

	config Config
	logger *logger.Logger

	// onCreated is invoked after every successful CreateSession.
	onCreated func(contract.SessionID)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a session manager wired to its collaborators.
func NewManager(
	registry *adapter.Registry,
	limiter *ratelimit.Limiter,
	claimsMgr *claims.Manager,
	workspaces *workspace.Provider,
	cfg Config,
	log *logger.Logger,
) *Manager {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultConfig().CommandTimeout
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = DefaultConfig().SubscriberBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions:   make(map[contract.SessionID]*Session),
		registry:   registry,
		limiter:    limiter,
		claims:     claimsMgr,
		workspaces: workspaces,
		config:     cfg,
		logger:     log.WithFields(zap.String("component", "session-manager")),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// OnSessionCreated registers a callback invoked after each session is
// created. Set it before sessions exist; it runs on the creating
// goroutine.
func (m *Manager) OnSessionCreated(fn func(contract.SessionID)) {
	m.onCreated = fn
}

// CreateSession provisions a workspace, starts the session's worker and
// emits the initial status-changed(running) event.
func (m *Manager) CreateSession(cfg contract.SessionConfig) (*Session, error) {
	if cfg.SessionID == "" {
		cfg.SessionID = contract.NewSessionID()
	}
	cfg.Policy = m.resolvePolicy(cfg.Policy)

	m.mu.Lock()
	if _, exists := m.sessions[cfg.SessionID]; exists {
		m.mu.Unlock()
		return nil, apperrors.Conflict(fmt.Sprintf("session '%s' already exists", cfg.SessionID))
	}
	m.mu.Unlock()

	path, err := m.workspaces.Acquire(cfg)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to provision workspace")
	}
	cfg.Workspace.Path = path

	s := newSession(cfg, path, m.config.SubscriberBuffer, m.logger)

	m.mu.Lock()
	m.sessions[cfg.SessionID] = s
	m.mu.Unlock()

	event := contract.NewEvent(contract.EventSessionStatusChanged, contract.Correlation{SessionID: cfg.SessionID})
	event.Status = &contract.StatusPayload{Status: contract.SessionRunning, Reason: "session created"}
	s.Emit(event)

	m.wg.Add(1)
	go m.runWorker(s)

	m.logger.Info("session created",
		zap.String("session_id", string(cfg.SessionID)),
		zap.String("workspace", path))

	if m.onCreated != nil {
		m.onCreated(cfg.SessionID)
	}
	return s, nil
}

// resolvePolicy replaces a named policy reference with the configured
// profile of that name. An empty policy takes the default profile when
// one is configured; inline rules without a name are used as-is.
func (m *Manager) resolvePolicy(p contract.PolicyProfile) contract.PolicyProfile {
	if p.Name != "" {
		if resolved, ok := m.config.Profiles[p.Name]; ok {
			return resolved
		}
		return p
	}
	if inlineProfile(p) {
		return p
	}
	if resolved, ok := m.config.Profiles[m.config.DefaultProfile]; ok {
		return resolved
	}
	return p
}

func inlineProfile(p contract.PolicyProfile) bool {
	return p.CommandWhitelist != nil ||
		p.CommandBlacklist != nil ||
		p.ProtectedBranches != nil ||
		p.AllowedWorkItemTransitions != nil ||
		p.Limits != nil ||
		p.MaxFilesPerCommit > 0 ||
		p.RequireTestsBeforePush ||
		p.RequireApprovalForPush
}

// GetSession returns a session by id.
func (m *Manager) GetSession(id contract.SessionID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("session", string(id))
	}
	return s, nil
}

// ListSessions returns all known sessions.
func (m *Manager) ListSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// PublishCommand enqueues a command on its session's pipeline. Commands
// for unknown sessions are dropped with a warning; every other outcome
// surfaces as an event on the session log, never as an error.
func (m *Manager) PublishCommand(cmd *contract.Command) {
	m.mu.RLock()
	s, ok := m.sessions[cmd.Correlation.SessionID]
	m.mu.RUnlock()
	if !ok {
		m.logger.Warn("dropping command for unknown session",
			zap.String("session_id", string(cmd.Correlation.SessionID)),
			zap.String("command_id", string(cmd.ID)),
			zap.String("kind", string(cmd.Kind)))
		return
	}

	// Terminal detection keys on the correlation; hand-built commands may
	// not have mirrored their id into it.
	cmd.Correlation.CommandID = cmd.ID

	select {
	case s.commands <- cmd:
	case <-m.ctx.Done():
	}
}

// Subscribe attaches a subscriber that replays the session log from its
// first event, then streams live.
func (m *Manager) Subscribe(id contract.SessionID) (*Subscriber, error) {
	s, err := m.GetSession(id)
	if err != nil {
		return nil, err
	}
	return newSubscriber(s, true), nil
}

// SubscribeLive attaches a subscriber that only receives events emitted
// after the call.
func (m *Manager) SubscribeLive(id contract.SessionID) (*Subscriber, error) {
	s, err := m.GetSession(id)
	if err != nil {
		return nil, err
	}
	return newSubscriber(s, false), nil
}

// PauseSession moves a running session to paused. In-flight commands
// finish; queued commands are rejected until the session resumes.
func (m *Manager) PauseSession(id contract.SessionID) error {
	return m.transition(id, contract.SessionPaused, "paused by operator")
}

// ResumeSession moves a paused session back to running.
func (m *Manager) ResumeSession(id contract.SessionID) error {
	return m.transition(id, contract.SessionRunning, "resumed by operator")
}

// ApproveSession grants the pending approval and, when the session is
// waiting on it, moves it back to running.
func (m *Manager) ApproveSession(id contract.SessionID) error {
	s, err := m.GetSession(id)
	if err != nil {
		return err
	}
	s.approve()
	if s.Status() == contract.SessionNeedsApproval {
		s.transitionTo(contract.SessionRunning, "approval granted")
	}
	return nil
}

// CompleteSession moves a session to completed and tears it down.
func (m *Manager) CompleteSession(id contract.SessionID) error {
	if err := m.transition(id, contract.SessionCompleted, "completed"); err != nil {
		return err
	}
	return m.teardown(id)
}

// AbortSession cancels the session's context, moves it to aborted and
// tears it down. In-flight adapters are expected to observe the cancel
// and complete their command promptly.
func (m *Manager) AbortSession(id contract.SessionID) error {
	s, err := m.GetSession(id)
	if err != nil {
		return err
	}
	s.cancel()
	if err := m.transition(id, contract.SessionAborted, "aborted by operator"); err != nil {
		return err
	}
	return m.teardown(id)
}

// RecoverSession moves an errored session back to running.
func (m *Manager) RecoverSession(id contract.SessionID) error {
	return m.transition(id, contract.SessionRunning, "recovered by operator")
}

func (m *Manager) transition(id contract.SessionID, next contract.SessionStatus, reason string) error {
	s, err := m.GetSession(id)
	if err != nil {
		return err
	}
	from := s.Status()
	if !s.transitionTo(next, reason) {
		return apperrors.InvalidTransition(string(from), string(next))
	}
	return nil
}

// teardown releases the session's workspace, claims and rate buckets. The
// session stays registered so late commands are rejected on its log, and
// its worker keeps running to do that.
func (m *Manager) teardown(id contract.SessionID) error {
	released := m.claims.ReleaseForSession(id)
	if released > 0 {
		m.logger.Info("released session claims",
			zap.String("session_id", string(id)),
			zap.Int("count", released))
	}
	m.limiter.ForgetSession(id)
	if err := m.workspaces.Release(id); err != nil {
		return apperrors.Wrap(err, "failed to release workspace")
	}
	return nil
}

// Shutdown stops all session workers and waits for them to drain.
func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) runWorker(s *Session) {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case cmd := <-s.commands:
			m.process(s, cmd)
		}
	}
}

// process runs one command through the pipeline: status gate, policy,
// rate limit, dispatch. Every path ends with exactly one terminal event
// on the session log.
func (m *Manager) process(s *Session, cmd *contract.Command) {
	log := s.logger.WithCommandID(string(cmd.ID))

	status := s.Status()
	if !status.AcceptsCommands() {
		event := contract.NewEvent(contract.EventCommandRejected, cmd.Correlation)
		event.Rejected = &contract.RejectedPayload{
			Reason:     "Session not accepting commands",
			PolicyRule: string(status),
		}
		s.Emit(event)
		return
	}

	testsPassed, approvalGranted := s.observations()
	profile := s.Policy()
	decision := policy.Enforce(cmd, &profile, policy.Observations{
		TestsPassedSinceCommit: testsPassed,
		ApprovalGranted:        approvalGranted,
	})
	if !decision.Allowed {
		event := contract.NewEvent(contract.EventCommandRejected, cmd.Correlation)
		event.Rejected = &contract.RejectedPayload{
			Reason:     decision.Reason,
			PolicyRule: decision.Rule,
		}
		s.Emit(event)
		return
	}

	admit := m.limiter.Admit(s.config.SessionID, cmd.Kind, profile.Limits)
	if !admit.Allowed {
		event := contract.NewEvent(contract.EventThrottled, cmd.Correlation)
		event.Throttled = &contract.ThrottledPayload{
			Scope:      string(admit.Scope),
			RetryAfter: admit.RetryAfter,
		}
		s.Emit(event)
		return
	}

	s.Emit(contract.NewEvent(contract.EventCommandAccepted, cmd.Correlation))

	handler, name, found := m.registry.Find(cmd)
	if !found {
		event := contract.NewEvent(contract.EventCommandCompleted, cmd.Correlation)
		event.Completed = &contract.CompletedPayload{
			Outcome:   contract.OutcomeFailure,
			Message:   "no adapter",
			ErrorCode: contract.ErrorCodeNoAdapter,
		}
		s.Emit(event)
		return
	}

	done := s.waitTerminal(cmd.ID)
	go m.invoke(handler, name, cmd, s, log)

	timer := time.NewTimer(m.config.CommandTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		log.Warn("command exceeded wall-clock ceiling",
			zap.String("adapter", name),
			zap.Duration("timeout", m.config.CommandTimeout))
		event := contract.NewEvent(contract.EventCommandCompleted, cmd.Correlation)
		event.Completed = &contract.CompletedPayload{
			Outcome:   contract.OutcomeFailure,
			Message:   "timeout",
			ErrorCode: contract.ErrorCodeTimeout,
		}
		s.Emit(event)
	}

	m.observeCompletion(s, cmd)
}

// invoke runs the adapter with panic recovery; a panic becomes a failed
// completion instead of taking the process down.
func (m *Manager) invoke(handler adapter.Adapter, name string, cmd *contract.Command, s *Session, log *logger.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("adapter panicked",
				zap.String("adapter", name),
				zap.Any("panic", r))
			event := contract.NewEvent(contract.EventCommandCompleted, cmd.Correlation)
			event.Completed = &contract.CompletedPayload{
				Outcome:   contract.OutcomeFailure,
				Message:   fmt.Sprintf("adapter panic: %v", r),
				ErrorCode: contract.ErrorCodeInternal,
			}
			s.Emit(event)
		}
	}()
	handler.HandleCommand(cmd, s)
}

// observeCompletion updates session history after a terminal completion:
// the tests-since-commit flag and the approval transition.
func (m *Manager) observeCompletion(s *Session, cmd *contract.Command) {
	completed := s.terminalCompletion(cmd.ID)
	if completed == nil || completed.Outcome != contract.OutcomeSuccess {
		return
	}

	switch cmd.Kind {
	case contract.CommandRunTests:
		s.recordTestsPassed(true)
	case contract.CommandCommit:
		s.recordTestsPassed(false)
	case contract.CommandRequestApproval:
		s.transitionTo(contract.SessionNeedsApproval, "approval requested")
	}
}
