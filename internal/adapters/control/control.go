// Package control is the built-in adapter for orchestration commands that
// need no external system: artifact uploads and human approval requests.
package control

import (
	"go.uber.org/zap"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/internal/orchestrator/adapter"
	"github.com/agentware/maestro/pkg/contract"
)

// Adapter handles upload-artifact and request-approval.
type Adapter struct {
	logger *logger.Logger
}

// New creates the control adapter.
func New(log *logger.Logger) *Adapter {
	return &Adapter{logger: log.WithFields(zap.String("component", "control-adapter"))}
}

// CanHandle reports whether the command is a control intent.
func (a *Adapter) CanHandle(cmd *contract.Command) bool {
	return cmd.Kind == contract.CommandUploadArtifact || cmd.Kind == contract.CommandRequestApproval
}

// HandleCommand executes the command and emits exactly one completion.
func (a *Adapter) HandleCommand(cmd *contract.Command, state adapter.SessionState) {
	switch cmd.Kind {
	case contract.CommandUploadArtifact:
		a.uploadArtifact(cmd, state)
	case contract.CommandRequestApproval:
		// The session manager parks the session on the successful
		// completion; the adapter only acknowledges the request.
		reason := ""
		if cmd.RequestApproval != nil {
			reason = cmd.RequestApproval.Reason
		}
		a.logger.Info("approval requested",
			zap.String("session_id", string(cmd.Correlation.SessionID)),
			zap.String("reason", reason))
		adapter.CompleteSuccess(state, cmd, "approval requested")
	default:
		adapter.CompleteFailure(state, cmd, "unsupported", contract.ErrorCodeUnsupported)
	}
}

func (a *Adapter) uploadArtifact(cmd *contract.Command, state adapter.SessionState) {
	spec := cmd.UploadArtifact
	if spec == nil || spec.Artifact.Kind == "" {
		adapter.CompleteFailure(state, cmd, "artifact required", "")
		return
	}
	artifact := spec.Artifact
	if artifact.ID == "" {
		artifact.ID = contract.NewArtifactID()
	}
	adapter.EmitArtifact(state, cmd, artifact)
	adapter.CompleteSuccess(state, cmd, "artifact published")
}
