package contract

import "time"

// EventKind enumerates the events the orchestrator emits.
type EventKind string

const (
	EventCommandAccepted      EventKind = "command-accepted"
	EventCommandRejected      EventKind = "command-rejected"
	EventCommandCompleted     EventKind = "command-completed"
	EventArtifactAvailable    EventKind = "artifact-available"
	EventThrottled            EventKind = "throttled"
	EventConflictDetected     EventKind = "conflict-detected"
	EventSessionStatusChanged EventKind = "session-status-changed"
	EventPlanUpdated          EventKind = "plan-updated"
	EventBacklogQueried       EventKind = "backlog-queried"
	EventWorkItemQueried      EventKind = "work-item-queried"
)

// Outcome is the terminal result of an accepted command.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Error codes adapters attach to failed completions.
const (
	ErrorCodeAuth        = "AUTH_ERROR"
	ErrorCodeConflict    = "CONFLICT"
	ErrorCodeTimeout     = "TIMEOUT"
	ErrorCodeCancelled   = "CANCELLED"
	ErrorCodeUnsupported = "UNSUPPORTED"
	ErrorCodeLivePolicy  = "LIVE_POLICY"
	ErrorCodeNoAdapter   = "NO_ADAPTER"
	ErrorCodeInternal    = "INTERNAL"
)

// Event is an immutable record appended to a session's log. Exactly one of
// the payload pointers matching Kind is set.
type Event struct {
	ID          EventID     `json:"id"`
	Correlation Correlation `json:"correlation"`
	Kind        EventKind   `json:"kind"`
	Timestamp   time.Time   `json:"timestamp"`

	Rejected  *RejectedPayload  `json:"rejected,omitempty"`
	Completed *CompletedPayload `json:"completed,omitempty"`
	Artifact  *Artifact         `json:"artifact,omitempty"`
	Throttled *ThrottledPayload `json:"throttled,omitempty"`
	Conflict  *ConflictPayload  `json:"conflict,omitempty"`
	Status    *StatusPayload    `json:"status,omitempty"`
	Plan      *PlanPayload      `json:"plan,omitempty"`
	Backlog   *BacklogPayload   `json:"backlog,omitempty"`
	WorkItem  *WorkItemPayload  `json:"workItem,omitempty"`
}

// NewEvent creates an event of the given kind with a fresh id and the
// current timestamp.
func NewEvent(kind EventKind, correlation Correlation) Event {
	return Event{
		ID:          NewEventID(),
		Correlation: correlation,
		Kind:        kind,
		Timestamp:   time.Now().UTC(),
	}
}

// RejectedPayload explains a policy or status rejection.
type RejectedPayload struct {
	Reason     string `json:"reason"`
	PolicyRule string `json:"policyRule,omitempty"`
}

// CompletedPayload is the terminal result for an accepted command.
type CompletedPayload struct {
	Outcome   Outcome `json:"outcome"`
	Message   string  `json:"message,omitempty"`
	ErrorCode string  `json:"errorCode,omitempty"`
}

// ThrottledPayload carries the rate-limit scope that refused the command
// and the earliest time a retry can succeed. RetryAfter equal to
// RetryNever means the bucket never refills.
type ThrottledPayload struct {
	Scope      string    `json:"scope"`
	RetryAfter time.Time `json:"retryAfter"`
}

// ConflictPayload describes a merge or patch conflict.
type ConflictPayload struct {
	Repo    RepoRef `json:"repo"`
	Details string  `json:"details"`
	Patch   string  `json:"patch,omitempty"`
}

// StatusPayload announces a session status transition.
type StatusPayload struct {
	Status SessionStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// PlanPayload announces a plan change.
type PlanPayload struct {
	PlanNodeID PlanNodeID `json:"planNodeId,omitempty"`
	Summary    string     `json:"summary,omitempty"`
}

// BacklogPayload answers a query-backlog command.
type BacklogPayload struct {
	Items []WorkItemSummary `json:"items"`
}

// WorkItemPayload answers a query-work-item command.
type WorkItemPayload struct {
	Details WorkItemDetails `json:"details"`
}

// WorkItemSummary is a backlog listing row.
type WorkItemSummary struct {
	Ref   WorkItemRef `json:"ref"`
	Title string      `json:"title"`
	State string      `json:"state"`
}

// WorkItemDetails is the full view of a work item.
type WorkItemDetails struct {
	Ref         WorkItemRef `json:"ref"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	State       string      `json:"state"`
	Assignee    string      `json:"assignee,omitempty"`
	Comments    []string    `json:"comments,omitempty"`
}

// IsTerminalFor reports whether the event terminates the pipeline for the
// given command id: a completion, rejection or throttle correlated to it.
func (e *Event) IsTerminalFor(id CommandID) bool {
	if e.Correlation.CommandID != id {
		return false
	}
	switch e.Kind {
	case EventCommandCompleted, EventCommandRejected, EventThrottled:
		return true
	}
	return false
}
