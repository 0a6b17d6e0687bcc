package contract

import "time"

// CommandKind enumerates the closed set of intents the orchestrator routes.
type CommandKind string

const (
	CommandCreateBranch     CommandKind = "create-branch"
	CommandApplyPatch       CommandKind = "apply-patch"
	CommandRunTests         CommandKind = "run-tests"
	CommandBuildProject     CommandKind = "build-project"
	CommandCommit           CommandKind = "commit"
	CommandPush             CommandKind = "push"
	CommandGetDiff          CommandKind = "get-diff"
	CommandTransitionTicket CommandKind = "transition-ticket"
	CommandComment          CommandKind = "comment"
	CommandSetAssignee      CommandKind = "set-assignee"
	CommandUploadArtifact   CommandKind = "upload-artifact"
	CommandRequestApproval  CommandKind = "request-approval"
	CommandQueryBacklog     CommandKind = "query-backlog"
	CommandQueryWorkItem    CommandKind = "query-work-item"

	// Reserved kinds. No built-in adapter handles them yet; publishing one
	// completes with failure "no adapter".
	CommandSpawnSession CommandKind = "spawn-session"
	CommandLinkPlanNode CommandKind = "link-plan-node"
)

// Command is a typed intent submitted to the orchestrator. Exactly one of
// the payload pointers matching Kind is set; the rest are nil.
type Command struct {
	ID          CommandID   `json:"id"`
	Correlation Correlation `json:"correlation"`
	Kind        CommandKind `json:"kind"`

	CreateBranch     *CreateBranchSpec     `json:"createBranch,omitempty"`
	ApplyPatch       *ApplyPatchSpec       `json:"applyPatch,omitempty"`
	RunTests         *RunTestsSpec         `json:"runTests,omitempty"`
	BuildProject     *BuildProjectSpec     `json:"buildProject,omitempty"`
	Commit           *CommitSpec           `json:"commit,omitempty"`
	Push             *PushSpec             `json:"push,omitempty"`
	GetDiff          *GetDiffSpec          `json:"getDiff,omitempty"`
	TransitionTicket *TransitionTicketSpec `json:"transitionTicket,omitempty"`
	Comment          *CommentSpec          `json:"comment,omitempty"`
	SetAssignee      *SetAssigneeSpec      `json:"setAssignee,omitempty"`
	UploadArtifact   *UploadArtifactSpec   `json:"uploadArtifact,omitempty"`
	RequestApproval  *RequestApprovalSpec  `json:"requestApproval,omitempty"`
	QueryBacklog     *QueryBacklogSpec     `json:"queryBacklog,omitempty"`
	QueryWorkItem    *QueryWorkItemSpec    `json:"queryWorkItem,omitempty"`
}

// NewCommand creates a command of the given kind with a fresh id. The
// command id is mirrored into the correlation so response events can carry
// it back.
func NewCommand(kind CommandKind, correlation Correlation) *Command {
	id := NewCommandID()
	correlation.CommandID = id
	return &Command{
		ID:          id,
		Correlation: correlation,
		Kind:        kind,
	}
}

// CreateBranchSpec creates a branch in the session repository.
type CreateBranchSpec struct {
	Repo       RepoRef `json:"repo"`
	Branch     string  `json:"branch"`
	FromBranch string  `json:"fromBranch,omitempty"`
}

// ApplyPatchSpec applies a unified-diff patch to the workspace.
type ApplyPatchSpec struct {
	Repo  RepoRef `json:"repo"`
	Patch string  `json:"patch"`
}

// RunTestsSpec runs the project test suite. Timeout is enforced by the
// adapter; zero means the adapter default.
type RunTestsSpec struct {
	Selector string        `json:"selector,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// BuildProjectSpec builds the project.
type BuildProjectSpec struct {
	Target  string        `json:"target,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// CommitSpec records a commit limited to IncludePaths (all staged changes
// when empty).
type CommitSpec struct {
	Repo         RepoRef  `json:"repo"`
	Branch       string   `json:"branch"`
	Message      string   `json:"message"`
	IncludePaths []string `json:"includePaths,omitempty"`
}

// PushSpec pushes a branch to a remote.
type PushSpec struct {
	Repo   RepoRef `json:"repo"`
	Branch string  `json:"branch"`
	Remote string  `json:"remote,omitempty"`
}

// GetDiffSpec requests the current workspace diff.
type GetDiffSpec struct {
	Repo    RepoRef `json:"repo"`
	BaseRef string  `json:"baseRef,omitempty"`
}

// TransitionTicketSpec moves a work item to a new state.
type TransitionTicketSpec struct {
	WorkItem WorkItemRef `json:"workItem"`
	ToState  string      `json:"toState"`
}

// CommentSpec adds a comment to a work item.
type CommentSpec struct {
	WorkItem WorkItemRef `json:"workItem"`
	Body     string      `json:"body"`
}

// SetAssigneeSpec assigns a work item to an agent or user.
type SetAssigneeSpec struct {
	WorkItem WorkItemRef `json:"workItem"`
	Assignee string      `json:"assignee"`
}

// UploadArtifactSpec publishes an artifact on the session log.
type UploadArtifactSpec struct {
	Artifact Artifact `json:"artifact"`
}

// RequestApprovalSpec asks a human to approve a pending action.
type RequestApprovalSpec struct {
	Reason string `json:"reason,omitempty"`
}

// QueryBacklogSpec lists work items, optionally filtered by state.
type QueryBacklogSpec struct {
	StateFilter string `json:"stateFilter,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// QueryWorkItemSpec fetches details of a single work item.
type QueryWorkItemSpec struct {
	WorkItem WorkItemRef `json:"workItem"`
}

// TargetBranch returns the branch a branch-mutating command targets, or ""
// for commands that do not touch branches. Used by the policy enforcer's
// protected-branch rule.
func (c *Command) TargetBranch() string {
	switch c.Kind {
	case CommandCreateBranch:
		if c.CreateBranch != nil {
			return c.CreateBranch.Branch
		}
	case CommandCommit:
		if c.Commit != nil {
			return c.Commit.Branch
		}
	case CommandPush:
		if c.Push != nil {
			return c.Push.Branch
		}
	}
	return ""
}

// MutatesBranch reports whether the command kind mutates a branch.
func (c *Command) MutatesBranch() bool {
	switch c.Kind {
	case CommandCreateBranch, CommandCommit, CommandPush:
		return true
	}
	return false
}
