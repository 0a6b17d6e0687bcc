package contract

// SessionStatus is the 5-state session machine plus the two terminal
// states.
type SessionStatus string

const (
	SessionRunning       SessionStatus = "running"
	SessionPaused        SessionStatus = "paused"
	SessionNeedsApproval SessionStatus = "needs-approval"
	SessionError         SessionStatus = "error"
	SessionCompleted     SessionStatus = "completed"
	SessionAborted       SessionStatus = "aborted"
)

// IsTerminal reports whether the status is final.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionAborted
}

// AcceptsCommands reports whether commands may enter the pipeline.
func (s SessionStatus) AcceptsCommands() bool {
	return s == SessionRunning
}

// CanTransitionTo reports whether the transition is legal.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case SessionRunning:
		switch next {
		case SessionPaused, SessionNeedsApproval, SessionError, SessionCompleted, SessionAborted:
			return true
		}
	case SessionPaused:
		switch next {
		case SessionRunning, SessionNeedsApproval, SessionError, SessionCompleted, SessionAborted:
			return true
		}
	case SessionNeedsApproval:
		switch next {
		case SessionRunning, SessionError, SessionAborted:
			return true
		}
	case SessionError:
		switch next {
		case SessionRunning, SessionAborted:
			return true
		}
	}
	return false
}

// SessionConfig describes a session at creation time.
type SessionConfig struct {
	SessionID       SessionID     `json:"sessionId"`
	ParentSessionID SessionID     `json:"parentSessionId,omitempty"`
	PlanNodeID      PlanNodeID    `json:"planNodeId,omitempty"`
	Policy          PolicyProfile `json:"policy"`
	Repo            RepoRef       `json:"repo"`
	Workspace       WorkspaceRef  `json:"workspace"`
	WorkItem        *WorkItemRef  `json:"workItem,omitempty"`
	AgentProfile    string        `json:"agentProfile,omitempty"`
}
