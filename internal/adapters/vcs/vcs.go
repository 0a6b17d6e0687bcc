// Package vcs is the built-in version-control adapter. It keeps a
// simulated repository per workspace: branches, commits and applied
// patches live in memory, and real remotes are only ever touched when the
// live policy allows it.
package vcs

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/internal/orchestrator/adapter"
	"github.com/agentware/maestro/pkg/contract"
)

// conflictMarker is the start-of-hunk marker a conflicted patch carries.
const conflictMarker = "<<<<<<<"

type commit struct {
	branch  string
	message string
	paths   []string
}

// repoState is the simulated repository behind one workspace.
type repoState struct {
	branches map[string]bool
	commits  []commit
	// patches applied since the last commit; get-diff concatenates them.
	pending []string
}

// Adapter handles create-branch, apply-patch, commit, push and get-diff.
type Adapter struct {
	mu     sync.Mutex
	repos  map[string]*repoState // workspace path -> state
	live   contract.LivePolicy
	logger *logger.Logger
}

// New creates the vcs adapter with the given live policy.
func New(live contract.LivePolicy, log *logger.Logger) *Adapter {
	return &Adapter{
		repos:  make(map[string]*repoState),
		live:   live,
		logger: log.WithFields(zap.String("component", "vcs-adapter")),
	}
}

// CanHandle reports whether the command is a version-control intent.
func (a *Adapter) CanHandle(cmd *contract.Command) bool {
	switch cmd.Kind {
	case contract.CommandCreateBranch, contract.CommandApplyPatch,
		contract.CommandCommit, contract.CommandPush, contract.CommandGetDiff:
		return true
	}
	return false
}

// HandleCommand executes the command and emits exactly one completion.
func (a *Adapter) HandleCommand(cmd *contract.Command, state adapter.SessionState) {
	switch cmd.Kind {
	case contract.CommandCreateBranch:
		a.createBranch(cmd, state)
	case contract.CommandApplyPatch:
		a.applyPatch(cmd, state)
	case contract.CommandCommit:
		a.commit(cmd, state)
	case contract.CommandPush:
		a.push(cmd, state)
	case contract.CommandGetDiff:
		a.getDiff(cmd, state)
	default:
		adapter.CompleteFailure(state, cmd, "unsupported", contract.ErrorCodeUnsupported)
	}
}

func (a *Adapter) repoFor(workspace string) *repoState {
	a.mu.Lock()
	defer a.mu.Unlock()
	repo, ok := a.repos[workspace]
	if !ok {
		repo = &repoState{branches: map[string]bool{"main": true}}
		a.repos[workspace] = repo
	}
	return repo
}

func (a *Adapter) createBranch(cmd *contract.Command, state adapter.SessionState) {
	spec := cmd.CreateBranch
	if spec == nil || spec.Branch == "" {
		adapter.CompleteFailure(state, cmd, "branch name required", "")
		return
	}

	repo := a.repoFor(state.WorkspacePath())
	a.mu.Lock()
	exists := repo.branches[spec.Branch]
	if !exists {
		repo.branches[spec.Branch] = true
	}
	a.mu.Unlock()

	if exists {
		adapter.CompleteFailure(state, cmd, fmt.Sprintf("branch '%s' already exists", spec.Branch), contract.ErrorCodeConflict)
		return
	}
	adapter.CompleteSuccess(state, cmd, fmt.Sprintf("created branch '%s'", spec.Branch))
}

func (a *Adapter) applyPatch(cmd *contract.Command, state adapter.SessionState) {
	spec := cmd.ApplyPatch
	if spec == nil || spec.Patch == "" {
		adapter.CompleteFailure(state, cmd, "patch required", "")
		return
	}

	if strings.Contains(spec.Patch, conflictMarker) {
		conflict := contract.NewEvent(contract.EventConflictDetected, cmd.Correlation)
		conflict.Conflict = &contract.ConflictPayload{
			Repo:    state.Repo(),
			Details: "patch does not apply cleanly",
			Patch:   spec.Patch,
		}
		state.Emit(conflict)
		adapter.CompleteFailure(state, cmd, "conflict", contract.ErrorCodeConflict)
		return
	}

	repo := a.repoFor(state.WorkspacePath())
	a.mu.Lock()
	repo.pending = append(repo.pending, spec.Patch)
	a.mu.Unlock()

	adapter.EmitArtifact(state, cmd, contract.InlineArtifact(
		contract.ArtifactPatch, "applied.patch", "text/x-patch", spec.Patch))

	if a.live.DryRun {
		adapter.CompleteSuccess(state, cmd, "patch applied (dry-run)")
		return
	}
	adapter.CompleteSuccess(state, cmd, "patch applied")
}

func (a *Adapter) commit(cmd *contract.Command, state adapter.SessionState) {
	spec := cmd.Commit
	if spec == nil || spec.Message == "" {
		adapter.CompleteFailure(state, cmd, "commit message required", "")
		return
	}

	repo := a.repoFor(state.WorkspacePath())
	a.mu.Lock()
	branch := spec.Branch
	if branch == "" {
		branch = "main"
	}
	repo.branches[branch] = true
	repo.commits = append(repo.commits, commit{
		branch:  branch,
		message: spec.Message,
		paths:   spec.IncludePaths,
	})
	repo.pending = nil
	a.mu.Unlock()

	if a.live.DryRun {
		adapter.CompleteSuccess(state, cmd, fmt.Sprintf("committed to '%s' (dry-run)", branch))
		return
	}
	adapter.CompleteSuccess(state, cmd, fmt.Sprintf("committed to '%s'", branch))
}

func (a *Adapter) push(cmd *contract.Command, state adapter.SessionState) {
	spec := cmd.Push
	if spec == nil || spec.Branch == "" {
		adapter.CompleteFailure(state, cmd, "branch required", "")
		return
	}

	if !a.live.AllowPush {
		a.logger.Warn("push refused by live policy",
			zap.String("session_id", string(cmd.Correlation.SessionID)),
			zap.String("branch", spec.Branch))
		adapter.CompleteFailure(state, cmd, "push not allowed by live policy", contract.ErrorCodeLivePolicy)
		return
	}

	repo := a.repoFor(state.WorkspacePath())
	a.mu.Lock()
	known := repo.branches[spec.Branch]
	a.mu.Unlock()
	if !known {
		adapter.CompleteFailure(state, cmd, fmt.Sprintf("unknown branch '%s'", spec.Branch), "")
		return
	}

	remote := spec.Remote
	if remote == "" {
		remote = "origin"
	}
	if a.live.DryRun {
		adapter.CompleteSuccess(state, cmd, fmt.Sprintf("pushed '%s' to '%s' (dry-run)", spec.Branch, remote))
		return
	}
	adapter.CompleteSuccess(state, cmd, fmt.Sprintf("pushed '%s' to '%s'", spec.Branch, remote))
}

func (a *Adapter) getDiff(cmd *contract.Command, state adapter.SessionState) {
	repo := a.repoFor(state.WorkspacePath())
	a.mu.Lock()
	diff := strings.Join(repo.pending, "\n")
	a.mu.Unlock()

	adapter.EmitArtifact(state, cmd, contract.InlineArtifact(
		contract.ArtifactDiff, "workspace.diff", "text/x-diff", diff))
	adapter.CompleteSuccess(state, cmd, "diff collected")
}
