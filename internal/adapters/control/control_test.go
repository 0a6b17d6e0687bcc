package control

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/pkg/contract"
)

type fakeState struct {
	mu     sync.Mutex
	events []contract.Event
	log    *logger.Logger
}

func (s *fakeState) Emit(event contract.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *fakeState) WorkspacePath() string           { return "" }
func (s *fakeState) Repo() contract.RepoRef          { return contract.RepoRef{} }
func (s *fakeState) WorkItem() *contract.WorkItemRef { return nil }
func (s *fakeState) Policy() contract.PolicyProfile  { return contract.PolicyProfile{} }
func (s *fakeState) Config() contract.SessionConfig  { return contract.SessionConfig{} }
func (s *fakeState) Logger() *logger.Logger          { return s.log }
func (s *fakeState) Context() context.Context        { return context.Background() }

func setup(t *testing.T) (*Adapter, *fakeState) {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console"})
	require.NoError(t, err)
	return New(log), &fakeState{log: log}
}

func TestUploadArtifact(t *testing.T) {
	a, state := setup(t)

	cmd := contract.NewCommand(contract.CommandUploadArtifact, contract.Correlation{SessionID: "s-1"})
	cmd.UploadArtifact = &contract.UploadArtifactSpec{
		Artifact: contract.Artifact{Kind: contract.ArtifactPlan, Name: "plan.md", InlineText: "1. fix"},
	}
	a.HandleCommand(cmd, state)

	require.Len(t, state.events, 2)
	published := state.events[0]
	require.Equal(t, contract.EventArtifactAvailable, published.Kind)
	assert.NotEmpty(t, published.Artifact.ID, "an id is assigned when the caller omits one")
	assert.Equal(t, "plan.md", published.Artifact.Name)
	assert.Equal(t, contract.EventCommandCompleted, state.events[1].Kind)
	assert.Equal(t, contract.OutcomeSuccess, state.events[1].Completed.Outcome)
}

func TestUploadArtifactRequiresPayload(t *testing.T) {
	a, state := setup(t)

	cmd := contract.NewCommand(contract.CommandUploadArtifact, contract.Correlation{SessionID: "s-1"})
	a.HandleCommand(cmd, state)

	require.Len(t, state.events, 1)
	assert.Equal(t, contract.OutcomeFailure, state.events[0].Completed.Outcome)
}

func TestRequestApprovalAcknowledges(t *testing.T) {
	a, state := setup(t)

	cmd := contract.NewCommand(contract.CommandRequestApproval, contract.Correlation{SessionID: "s-1"})
	cmd.RequestApproval = &contract.RequestApprovalSpec{Reason: "push to main"}
	a.HandleCommand(cmd, state)

	require.Len(t, state.events, 1)
	completed := state.events[0].Completed
	require.NotNil(t, completed)
	assert.Equal(t, contract.OutcomeSuccess, completed.Outcome)
	assert.Equal(t, "approval requested", completed.Message)
}

func TestCanHandle(t *testing.T) {
	a, _ := setup(t)
	assert.True(t, a.CanHandle(&contract.Command{Kind: contract.CommandUploadArtifact}))
	assert.True(t, a.CanHandle(&contract.Command{Kind: contract.CommandRequestApproval}))
	assert.False(t, a.CanHandle(&contract.Command{Kind: contract.CommandPush}))
}
