package session

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/internal/orchestrator/adapter"
	"github.com/agentware/maestro/internal/orchestrator/claims"
	"github.com/agentware/maestro/internal/orchestrator/policy"
	"github.com/agentware/maestro/internal/orchestrator/ratelimit"
	"github.com/agentware/maestro/internal/orchestrator/workspace"
	"github.com/agentware/maestro/pkg/contract"
)

// scriptedAdapter handles every routable kind and emits whatever its
// handle func says; the default is a success completion.
type scriptedAdapter struct {
	invocations atomic.Int64
	handle      func(cmd *contract.Command, state adapter.SessionState)
}

func (a *scriptedAdapter) CanHandle(cmd *contract.Command) bool {
	switch cmd.Kind {
	case contract.CommandSpawnSession, contract.CommandLinkPlanNode:
		return false
	}
	return true
}

func (a *scriptedAdapter) HandleCommand(cmd *contract.Command, state adapter.SessionState) {
	a.invocations.Add(1)
	if a.handle != nil {
		a.handle(cmd, state)
		return
	}
	completeOK(cmd, state)
}

func completeOK(cmd *contract.Command, state adapter.SessionState) {
	event := contract.NewEvent(contract.EventCommandCompleted, cmd.Correlation)
	event.Completed = &contract.CompletedPayload{Outcome: contract.OutcomeSuccess}
	state.Emit(event)
}

type env struct {
	manager    *Manager
	adapter    *scriptedAdapter
	claims     *claims.Manager
	workspaces *workspace.Provider
}

func setup(t *testing.T, cfg Config) *env {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console"})
	require.NoError(t, err)

	scripted := &scriptedAdapter{}
	registry := adapter.NewRegistry()
	registry.Register("scripted", scripted)

	claimsMgr := claims.NewManager(claims.DefaultConfig(), log)
	workspaces := workspace.NewProvider(workspace.Config{Root: t.TempDir(), CleanupOnTeardown: true}, log)
	limiter := ratelimit.NewLimiter(nil, log)

	m := NewManager(registry, limiter, claimsMgr, workspaces, cfg, log)
	t.Cleanup(m.Shutdown)
	return &env{manager: m, adapter: scripted, claims: claimsMgr, workspaces: workspaces}
}

func newSessionConfig(profile contract.PolicyProfile) contract.SessionConfig {
	return contract.SessionConfig{
		Policy: profile,
		Repo:   contract.RepoRef{Name: "demo", Path: "."},
	}
}

// waitKind drains the subscriber until an event of the kind arrives.
func waitKind(t *testing.T, sub *Subscriber, kind contract.EventKind) contract.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case event, ok := <-sub.Events():
			require.True(t, ok, "subscriber closed while waiting for %s", kind)
			if event.Kind == kind {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

// waitTerminal drains the subscriber until the command's terminal event
// arrives.
func waitTerminal(t *testing.T, sub *Subscriber, id contract.CommandID) contract.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case event, ok := <-sub.Events():
			require.True(t, ok, "subscriber closed while waiting for terminal of %s", id)
			if event.IsTerminalFor(id) {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for terminal event of %s", id)
		}
	}
}

func TestCreateSessionEmitsRunning(t *testing.T) {
	e := setup(t, DefaultConfig())

	s, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{}))
	require.NoError(t, err)

	events := s.Events()
	require.Len(t, events, 1)
	assert.Equal(t, contract.EventSessionStatusChanged, events[0].Kind)
	assert.Equal(t, contract.SessionRunning, events[0].Status.Status)

	info, err := os.Stat(s.WorkspacePath())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestHappyPathCommandLifecycle(t *testing.T) {
	e := setup(t, DefaultConfig())
	s, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{}))
	require.NoError(t, err)
	sub, err := e.manager.Subscribe(s.Config().SessionID)
	require.NoError(t, err)
	defer sub.Close()

	cmd := contract.NewCommand(contract.CommandGetDiff, contract.Correlation{SessionID: s.Config().SessionID})
	e.manager.PublishCommand(cmd)

	accepted := waitKind(t, sub, contract.EventCommandAccepted)
	assert.Equal(t, cmd.ID, accepted.Correlation.CommandID)

	completed := waitTerminal(t, sub, cmd.ID)
	require.Equal(t, contract.EventCommandCompleted, completed.Kind)
	assert.Equal(t, contract.OutcomeSuccess, completed.Completed.Outcome)
	assert.EqualValues(t, 1, e.adapter.invocations.Load())
}

func TestConcurrentSessionsIsolateLogs(t *testing.T) {
	e := setup(t, DefaultConfig())

	a, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{}))
	require.NoError(t, err)
	b, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{}))
	require.NoError(t, err)

	subA, err := e.manager.Subscribe(a.Config().SessionID)
	require.NoError(t, err)
	defer subA.Close()
	subB, err := e.manager.Subscribe(b.Config().SessionID)
	require.NoError(t, err)
	defer subB.Close()

	cmdA := contract.NewCommand(contract.CommandGetDiff, contract.Correlation{SessionID: a.Config().SessionID})
	cmdB := contract.NewCommand(contract.CommandGetDiff, contract.Correlation{SessionID: b.Config().SessionID})

	var wg sync.WaitGroup
	for _, cmd := range []*contract.Command{cmdA, cmdB} {
		wg.Add(1)
		go func(cmd *contract.Command) {
			defer wg.Done()
			e.manager.PublishCommand(cmd)
		}(cmd)
	}
	wg.Wait()
	waitTerminal(t, subA, cmdA.ID)
	waitTerminal(t, subB, cmdB.ID)

	// Each log holds exactly its own status/accepted/completed triple,
	// every event stamped with the owning session.
	for _, tc := range []struct {
		s   *Session
		cmd *contract.Command
	}{{a, cmdA}, {b, cmdB}} {
		events := tc.s.Events()
		require.Len(t, events, 3)
		assert.Equal(t, contract.EventSessionStatusChanged, events[0].Kind)
		assert.Equal(t, contract.EventCommandAccepted, events[1].Kind)
		assert.Equal(t, contract.EventCommandCompleted, events[2].Kind)
		for _, event := range events {
			assert.Equal(t, tc.s.Config().SessionID, event.Correlation.SessionID)
		}
		assert.Equal(t, tc.cmd.ID, events[1].Correlation.CommandID)
		assert.Equal(t, tc.cmd.ID, events[2].Correlation.CommandID)
	}
}

func TestPolicyRejectionSkipsAdapter(t *testing.T) {
	e := setup(t, DefaultConfig())
	profile := contract.PolicyProfile{
		CommandWhitelist: []contract.CommandKind{contract.CommandGetDiff},
	}
	s, err := e.manager.CreateSession(newSessionConfig(profile))
	require.NoError(t, err)
	sub, err := e.manager.Subscribe(s.Config().SessionID)
	require.NoError(t, err)
	defer sub.Close()

	cmd := contract.NewCommand(contract.CommandRunTests, contract.Correlation{SessionID: s.Config().SessionID})
	e.manager.PublishCommand(cmd)

	rejected := waitTerminal(t, sub, cmd.ID)
	require.Equal(t, contract.EventCommandRejected, rejected.Kind)
	assert.Equal(t, policy.ReasonPolicyViolation, rejected.Rejected.Reason)
	assert.Equal(t, policy.RuleNotInWhitelist, rejected.Rejected.PolicyRule)
	assert.EqualValues(t, 0, e.adapter.invocations.Load())

	// No accepted event exists for the rejected command.
	for _, event := range s.Events() {
		if event.Kind == contract.EventCommandAccepted {
			assert.NotEqual(t, cmd.ID, event.Correlation.CommandID)
		}
	}
}

func TestSessionRateLimitThrottles(t *testing.T) {
	e := setup(t, DefaultConfig())
	profile := contract.PolicyProfile{
		Limits: &contract.RateLimits{CallsPerMinute: 2, Burst: 2},
	}
	s, err := e.manager.CreateSession(newSessionConfig(profile))
	require.NoError(t, err)
	sub, err := e.manager.Subscribe(s.Config().SessionID)
	require.NoError(t, err)
	defer sub.Close()

	var last *contract.Command
	for i := 0; i < 3; i++ {
		last = contract.NewCommand(contract.CommandGetDiff, contract.Correlation{SessionID: s.Config().SessionID})
		e.manager.PublishCommand(last)
	}

	throttled := waitTerminal(t, sub, last.ID)
	require.Equal(t, contract.EventThrottled, throttled.Kind)
	assert.Equal(t, string(ratelimit.ScopeSession), throttled.Throttled.Scope)
	assert.True(t, throttled.Throttled.RetryAfter.After(time.Now().Add(-time.Second)))
	assert.EqualValues(t, 2, e.adapter.invocations.Load())
}

func TestPausedSessionRejectsUntilResumed(t *testing.T) {
	e := setup(t, DefaultConfig())
	s, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{}))
	require.NoError(t, err)
	id := s.Config().SessionID
	sub, err := e.manager.Subscribe(id)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, e.manager.PauseSession(id))

	cmd := contract.NewCommand(contract.CommandGetDiff, contract.Correlation{SessionID: id})
	e.manager.PublishCommand(cmd)

	rejected := waitTerminal(t, sub, cmd.ID)
	require.Equal(t, contract.EventCommandRejected, rejected.Kind)
	assert.Equal(t, "Session not accepting commands", rejected.Rejected.Reason)
	assert.Equal(t, string(contract.SessionPaused), rejected.Rejected.PolicyRule)

	require.NoError(t, e.manager.ResumeSession(id))

	retry := contract.NewCommand(contract.CommandGetDiff, contract.Correlation{SessionID: id})
	e.manager.PublishCommand(retry)
	completed := waitTerminal(t, sub, retry.ID)
	assert.Equal(t, contract.EventCommandCompleted, completed.Kind)
}

func TestApprovalFlow(t *testing.T) {
	e := setup(t, DefaultConfig())
	profile := contract.PolicyProfile{RequireApprovalForPush: true}
	s, err := e.manager.CreateSession(newSessionConfig(profile))
	require.NoError(t, err)
	id := s.Config().SessionID
	sub, err := e.manager.Subscribe(id)
	require.NoError(t, err)
	defer sub.Close()

	// Push before approval is rejected by policy.
	push := contract.NewCommand(contract.CommandPush, contract.Correlation{SessionID: id})
	push.Push = &contract.PushSpec{Branch: "feature/x"}
	e.manager.PublishCommand(push)
	rejected := waitTerminal(t, sub, push.ID)
	require.Equal(t, contract.EventCommandRejected, rejected.Kind)
	assert.Equal(t, policy.RuleApprovalRequired, rejected.Rejected.PolicyRule)

	// A successful approval request parks the session.
	req := contract.NewCommand(contract.CommandRequestApproval, contract.Correlation{SessionID: id})
	e.manager.PublishCommand(req)
	waitTerminal(t, sub, req.ID)
	status := waitKind(t, sub, contract.EventSessionStatusChanged)
	assert.Equal(t, contract.SessionNeedsApproval, status.Status.Status)

	require.NoError(t, e.manager.ApproveSession(id))
	status = waitKind(t, sub, contract.EventSessionStatusChanged)
	assert.Equal(t, contract.SessionRunning, status.Status.Status)

	// The granted approval satisfies the policy on the retry.
	retry := contract.NewCommand(contract.CommandPush, contract.Correlation{SessionID: id})
	retry.Push = &contract.PushSpec{Branch: "feature/x"}
	e.manager.PublishCommand(retry)
	completed := waitTerminal(t, sub, retry.ID)
	require.Equal(t, contract.EventCommandCompleted, completed.Kind)
	assert.Equal(t, contract.OutcomeSuccess, completed.Completed.Outcome)
}

func TestTestsBeforePushTracking(t *testing.T) {
	e := setup(t, DefaultConfig())
	profile := contract.PolicyProfile{RequireTestsBeforePush: true}
	s, err := e.manager.CreateSession(newSessionConfig(profile))
	require.NoError(t, err)
	id := s.Config().SessionID
	sub, err := e.manager.Subscribe(id)
	require.NoError(t, err)
	defer sub.Close()

	publish := func(kind contract.CommandKind) contract.Event {
		cmd := contract.NewCommand(kind, contract.Correlation{SessionID: id})
		if kind == contract.CommandPush {
			cmd.Push = &contract.PushSpec{Branch: "feature/x"}
		}
		if kind == contract.CommandCommit {
			cmd.Commit = &contract.CommitSpec{Branch: "feature/x", Message: "wip"}
		}
		e.manager.PublishCommand(cmd)
		return waitTerminal(t, sub, cmd.ID)
	}

	rejected := publish(contract.CommandPush)
	require.Equal(t, contract.EventCommandRejected, rejected.Kind)
	assert.Equal(t, policy.RuleTestsRequired, rejected.Rejected.PolicyRule)

	require.Equal(t, contract.EventCommandCompleted, publish(contract.CommandRunTests).Kind)
	assert.Equal(t, contract.EventCommandCompleted, publish(contract.CommandPush).Kind)

	// A commit clears the flag and the next push is rejected again.
	require.Equal(t, contract.EventCommandCompleted, publish(contract.CommandCommit).Kind)
	rejected = publish(contract.CommandPush)
	require.Equal(t, contract.EventCommandRejected, rejected.Kind)
	assert.Equal(t, policy.RuleTestsRequired, rejected.Rejected.PolicyRule)
}

func TestCommandTimeoutProducesFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CommandTimeout = 50 * time.Millisecond
	e := setup(t, cfg)
	e.adapter.handle = func(cmd *contract.Command, state adapter.SessionState) {
		// Never emits a completion.
		time.Sleep(200 * time.Millisecond)
	}

	s, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{}))
	require.NoError(t, err)
	sub, err := e.manager.Subscribe(s.Config().SessionID)
	require.NoError(t, err)
	defer sub.Close()

	cmd := contract.NewCommand(contract.CommandRunTests, contract.Correlation{SessionID: s.Config().SessionID})
	e.manager.PublishCommand(cmd)

	completed := waitTerminal(t, sub, cmd.ID)
	require.Equal(t, contract.EventCommandCompleted, completed.Kind)
	assert.Equal(t, contract.OutcomeFailure, completed.Completed.Outcome)
	assert.Equal(t, "timeout", completed.Completed.Message)
	assert.Equal(t, contract.ErrorCodeTimeout, completed.Completed.ErrorCode)
}

func TestAdapterPanicBecomesFailedCompletion(t *testing.T) {
	e := setup(t, DefaultConfig())
	e.adapter.handle = func(cmd *contract.Command, state adapter.SessionState) {
		if cmd.Kind == contract.CommandRunTests {
			panic("boom")
		}
		completeOK(cmd, state)
	}

	s, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{}))
	require.NoError(t, err)
	id := s.Config().SessionID
	sub, err := e.manager.Subscribe(id)
	require.NoError(t, err)
	defer sub.Close()

	cmd := contract.NewCommand(contract.CommandRunTests, contract.Correlation{SessionID: id})
	e.manager.PublishCommand(cmd)

	completed := waitTerminal(t, sub, cmd.ID)
	require.Equal(t, contract.EventCommandCompleted, completed.Kind)
	assert.Equal(t, contract.OutcomeFailure, completed.Completed.Outcome)
	assert.Equal(t, contract.ErrorCodeInternal, completed.Completed.ErrorCode)

	// The worker survives and keeps processing.
	next := contract.NewCommand(contract.CommandGetDiff, contract.Correlation{SessionID: id})
	e.manager.PublishCommand(next)
	completed = waitTerminal(t, sub, next.ID)
	assert.Equal(t, contract.OutcomeSuccess, completed.Completed.Outcome)
}

func TestDuplicateTerminalDropped(t *testing.T) {
	e := setup(t, DefaultConfig())
	e.adapter.handle = func(cmd *contract.Command, state adapter.SessionState) {
		completeOK(cmd, state)
		completeOK(cmd, state)
	}

	s, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{}))
	require.NoError(t, err)
	sub, err := e.manager.Subscribe(s.Config().SessionID)
	require.NoError(t, err)
	defer sub.Close()

	cmd := contract.NewCommand(contract.CommandGetDiff, contract.Correlation{SessionID: s.Config().SessionID})
	e.manager.PublishCommand(cmd)
	waitTerminal(t, sub, cmd.ID)

	terminals := 0
	for _, event := range s.Events() {
		if event.IsTerminalFor(cmd.ID) {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestNoAdapterCompletesWithFailure(t *testing.T) {
	e := setup(t, DefaultConfig())
	s, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{}))
	require.NoError(t, err)
	sub, err := e.manager.Subscribe(s.Config().SessionID)
	require.NoError(t, err)
	defer sub.Close()

	cmd := contract.NewCommand(contract.CommandSpawnSession, contract.Correlation{SessionID: s.Config().SessionID})
	e.manager.PublishCommand(cmd)

	completed := waitTerminal(t, sub, cmd.ID)
	require.Equal(t, contract.EventCommandCompleted, completed.Kind)
	assert.Equal(t, contract.OutcomeFailure, completed.Completed.Outcome)
	assert.Equal(t, "no adapter", completed.Completed.Message)
	assert.Equal(t, contract.ErrorCodeNoAdapter, completed.Completed.ErrorCode)
}

func TestHandBuiltCommandGetsCorrelatedTerminal(t *testing.T) {
	e := setup(t, DefaultConfig())
	s, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{}))
	require.NoError(t, err)
	id := s.Config().SessionID
	sub, err := e.manager.Subscribe(id)
	require.NoError(t, err)
	defer sub.Close()

	// Built by hand: the id is not mirrored into the correlation.
	cmd := &contract.Command{
		ID:          contract.NewCommandID(),
		Kind:        contract.CommandGetDiff,
		Correlation: contract.Correlation{SessionID: id},
	}
	e.manager.PublishCommand(cmd)

	completed := waitTerminal(t, sub, cmd.ID)
	require.Equal(t, contract.EventCommandCompleted, completed.Kind)
	assert.Equal(t, cmd.ID, completed.Correlation.CommandID)
}

func TestUnknownSessionCommandDropped(t *testing.T) {
	e := setup(t, DefaultConfig())

	cmd := contract.NewCommand(contract.CommandGetDiff, contract.Correlation{SessionID: "no-such-session"})
	assert.NotPanics(t, func() { e.manager.PublishCommand(cmd) })
	assert.EqualValues(t, 0, e.adapter.invocations.Load())
}

func TestSubscriberReplaysFromBirth(t *testing.T) {
	e := setup(t, DefaultConfig())
	s, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{}))
	require.NoError(t, err)
	id := s.Config().SessionID

	early, err := e.manager.Subscribe(id)
	require.NoError(t, err)
	defer early.Close()

	cmd := contract.NewCommand(contract.CommandGetDiff, contract.Correlation{SessionID: id})
	e.manager.PublishCommand(cmd)
	waitTerminal(t, early, cmd.ID)

	// A late subscriber sees the identical prefix in the identical order.
	late, err := e.manager.Subscribe(id)
	require.NoError(t, err)
	defer late.Close()

	want := s.Events()
	for _, expected := range want {
		select {
		case got := <-late.Events():
			assert.Equal(t, expected.ID, got.ID)
			assert.Equal(t, expected.Kind, got.Kind)
		case <-time.After(2 * time.Second):
			t.Fatal("late subscriber did not replay the log")
		}
	}
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SubscriberBuffer = 1
	e := setup(t, cfg)
	s, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{}))
	require.NoError(t, err)
	id := s.Config().SessionID

	slow, err := e.manager.Subscribe(id)
	require.NoError(t, err)
	defer slow.Close()
	fast, err := e.manager.Subscribe(id)
	require.NoError(t, err)
	defer fast.Close()

	// The slow subscriber never reads; the fast one must still see every
	// terminal event.
	for i := 0; i < 5; i++ {
		cmd := contract.NewCommand(contract.CommandGetDiff, contract.Correlation{SessionID: id})
		e.manager.PublishCommand(cmd)
		waitTerminal(t, fast, cmd.ID)
	}
}

func TestAbortTearsDownSession(t *testing.T) {
	e := setup(t, DefaultConfig())
	s, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{}))
	require.NoError(t, err)
	id := s.Config().SessionID

	item := contract.WorkItemRef{ID: "w-1"}
	require.Equal(t, claims.OutcomeGranted, e.claims.TryClaim(item, "agent-a", id))

	require.NoError(t, e.manager.AbortSession(id))

	assert.Equal(t, contract.SessionAborted, s.Status())
	assert.Error(t, s.Context().Err())
	_, held := e.claims.GetClaim("w-1")
	assert.False(t, held, "abort should release the session's claims")
	_, err = os.Stat(s.WorkspacePath())
	assert.True(t, os.IsNotExist(err), "abort should remove the allocated workspace")

	// The session stays addressable; late commands are rejected on its log.
	sub, err := e.manager.SubscribeLive(id)
	require.NoError(t, err)
	defer sub.Close()
	cmd := contract.NewCommand(contract.CommandGetDiff, contract.Correlation{SessionID: id})
	e.manager.PublishCommand(cmd)
	rejected := waitTerminal(t, sub, cmd.ID)
	require.Equal(t, contract.EventCommandRejected, rejected.Kind)
	assert.Equal(t, string(contract.SessionAborted), rejected.Rejected.PolicyRule)
}

func TestNamedPolicyProfileResolution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiles = map[string]contract.PolicyProfile{
		"readonly": {CommandWhitelist: []contract.CommandKind{contract.CommandGetDiff}},
		"default":  {RequireTestsBeforePush: true},
	}
	cfg.DefaultProfile = "default"
	e := setup(t, cfg)

	byName, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{Name: "readonly"}))
	require.NoError(t, err)
	named := byName.Policy()
	assert.True(t, named.HasWhitelist())

	empty, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{}))
	require.NoError(t, err)
	assert.True(t, empty.Policy().RequireTestsBeforePush, "empty policy should take the default profile")

	inline, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{
		CommandBlacklist: []contract.CommandKind{contract.CommandPush},
	}))
	require.NoError(t, err)
	resolved := inline.Policy()
	assert.False(t, resolved.RequireTestsBeforePush, "inline rules should not be overridden")
	assert.True(t, resolved.BlacklistDenies(contract.CommandPush))
}

func TestTerminalStatusRefusesTransitions(t *testing.T) {
	e := setup(t, DefaultConfig())
	s, err := e.manager.CreateSession(newSessionConfig(contract.PolicyProfile{}))
	require.NoError(t, err)
	id := s.Config().SessionID

	require.NoError(t, e.manager.CompleteSession(id))
	assert.Error(t, e.manager.ResumeSession(id))
	assert.Error(t, e.manager.PauseSession(id))
	assert.Equal(t, contract.SessionCompleted, s.Status())
}
