// Package tracker is the built-in issue-tracker adapter. It serves the
// ticket command kinds from an in-memory backlog and routes assignment
// through the claim manager so two sessions never hold the same item.
package tracker

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/internal/orchestrator/adapter"
	"github.com/agentware/maestro/internal/orchestrator/claims"
	"github.com/agentware/maestro/pkg/contract"
)

// Adapter handles transition-ticket, comment, set-assignee, query-backlog
// and query-work-item.
type Adapter struct {
	store  *Store
	claims *claims.Manager
	logger *logger.Logger
}

// New creates the tracker adapter over a backlog store.
func New(store *Store, claimsMgr *claims.Manager, log *logger.Logger) *Adapter {
	return &Adapter{
		store:  store,
		claims: claimsMgr,
		logger: log.WithFields(zap.String("component", "tracker-adapter")),
	}
}

// CanHandle reports whether the command is a tracker intent.
func (a *Adapter) CanHandle(cmd *contract.Command) bool {
	switch cmd.Kind {
	case contract.CommandTransitionTicket, contract.CommandComment,
		contract.CommandSetAssignee, contract.CommandQueryBacklog,
		contract.CommandQueryWorkItem:
		return true
	}
	return false
}

// HandleCommand executes the command and emits exactly one completion.
func (a *Adapter) HandleCommand(cmd *contract.Command, state adapter.SessionState) {
	switch cmd.Kind {
	case contract.CommandTransitionTicket:
		a.transition(cmd, state)
	case contract.CommandComment:
		a.comment(cmd, state)
	case contract.CommandSetAssignee:
		a.setAssignee(cmd, state)
	case contract.CommandQueryBacklog:
		a.queryBacklog(cmd, state)
	case contract.CommandQueryWorkItem:
		a.queryWorkItem(cmd, state)
	default:
		adapter.CompleteFailure(state, cmd, "unsupported", contract.ErrorCodeUnsupported)
	}
}

func (a *Adapter) transition(cmd *contract.Command, state adapter.SessionState) {
	spec := cmd.TransitionTicket
	if spec == nil || spec.WorkItem.ID == "" || spec.ToState == "" {
		adapter.CompleteFailure(state, cmd, "work item and target state required", "")
		return
	}
	if !knownStates[spec.ToState] {
		adapter.CompleteFailure(state, cmd, fmt.Sprintf("unsupported state '%s'", spec.ToState), contract.ErrorCodeUnsupported)
		return
	}
	if !a.store.Transition(spec.WorkItem.ID, spec.ToState) {
		adapter.CompleteFailure(state, cmd, fmt.Sprintf("work item '%s' not found", spec.WorkItem.ID), "")
		return
	}
	adapter.CompleteSuccess(state, cmd, fmt.Sprintf("moved '%s' to '%s'", spec.WorkItem.ID, spec.ToState))
}

func (a *Adapter) comment(cmd *contract.Command, state adapter.SessionState) {
	spec := cmd.Comment
	if spec == nil || spec.WorkItem.ID == "" || spec.Body == "" {
		adapter.CompleteFailure(state, cmd, "work item and body required", "")
		return
	}
	if !a.store.Comment(spec.WorkItem.ID, spec.Body) {
		adapter.CompleteFailure(state, cmd, fmt.Sprintf("work item '%s' not found", spec.WorkItem.ID), "")
		return
	}
	adapter.CompleteSuccess(state, cmd, "comment added")
}

// setAssignee claims the work item for the assignee before recording the
// assignment; exclusivity comes from the claim manager.
func (a *Adapter) setAssignee(cmd *contract.Command, state adapter.SessionState) {
	spec := cmd.SetAssignee
	if spec == nil || spec.WorkItem.ID == "" || spec.Assignee == "" {
		adapter.CompleteFailure(state, cmd, "work item and assignee required", "")
		return
	}
	if _, ok := a.store.Get(spec.WorkItem.ID); !ok {
		adapter.CompleteFailure(state, cmd, fmt.Sprintf("work item '%s' not found", spec.WorkItem.ID), "")
		return
	}

	outcome := a.claims.TryClaim(spec.WorkItem, spec.Assignee, cmd.Correlation.SessionID)
	switch outcome {
	case claims.OutcomeGranted:
		a.store.Assign(spec.WorkItem.ID, spec.Assignee)
		adapter.CompleteSuccess(state, cmd, fmt.Sprintf("assigned '%s' to '%s'", spec.WorkItem.ID, spec.Assignee))
	case claims.OutcomeAlreadyClaimed:
		holder := ""
		if claim, ok := a.claims.GetClaim(spec.WorkItem.ID); ok {
			holder = claim.Assignee
		}
		adapter.CompleteFailure(state, cmd,
			fmt.Sprintf("work item '%s' already claimed by '%s'", spec.WorkItem.ID, holder),
			contract.ErrorCodeConflict)
	default:
		adapter.CompleteFailure(state, cmd,
			fmt.Sprintf("claim rejected for '%s'", spec.WorkItem.ID),
			contract.ErrorCodeConflict)
	}
}

func (a *Adapter) queryBacklog(cmd *contract.Command, state adapter.SessionState) {
	spec := cmd.QueryBacklog
	filter := ""
	limit := 0
	if spec != nil {
		filter = spec.StateFilter
		limit = spec.Limit
	}
	if filter != "" && !knownStates[filter] {
		adapter.CompleteFailure(state, cmd, fmt.Sprintf("unsupported state filter '%s'", filter), contract.ErrorCodeUnsupported)
		return
	}

	event := contract.NewEvent(contract.EventBacklogQueried, cmd.Correlation)
	event.Backlog = &contract.BacklogPayload{Items: a.store.List(filter, limit)}
	state.Emit(event)
	adapter.CompleteSuccess(state, cmd, fmt.Sprintf("%d items", len(event.Backlog.Items)))
}

func (a *Adapter) queryWorkItem(cmd *contract.Command, state adapter.SessionState) {
	spec := cmd.QueryWorkItem
	if spec == nil || spec.WorkItem.ID == "" {
		adapter.CompleteFailure(state, cmd, "work item required", "")
		return
	}
	details, ok := a.store.Get(spec.WorkItem.ID)
	if !ok {
		adapter.CompleteFailure(state, cmd, fmt.Sprintf("work item '%s' not found", spec.WorkItem.ID), "")
		return
	}

	event := contract.NewEvent(contract.EventWorkItemQueried, cmd.Correlation)
	event.WorkItem = &contract.WorkItemPayload{Details: details}
	state.Emit(event)
	adapter.CompleteSuccess(state, cmd, "work item fetched")
}
