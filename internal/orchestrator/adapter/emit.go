package adapter

import (
	"github.com/agentware/maestro/pkg/contract"
)

// CompleteSuccess emits the successful terminal completion for a command.
func CompleteSuccess(state SessionState, cmd *contract.Command, message string) {
	event := contract.NewEvent(contract.EventCommandCompleted, cmd.Correlation)
	event.Completed = &contract.CompletedPayload{
		Outcome: contract.OutcomeSuccess,
		Message: message,
	}
	state.Emit(event)
}

// CompleteFailure emits the failed terminal completion for a command.
func CompleteFailure(state SessionState, cmd *contract.Command, message, errorCode string) {
	event := contract.NewEvent(contract.EventCommandCompleted, cmd.Correlation)
	event.Completed = &contract.CompletedPayload{
		Outcome:   contract.OutcomeFailure,
		Message:   message,
		ErrorCode: errorCode,
	}
	state.Emit(event)
}

// EmitArtifact publishes an artifact on the session log, correlated to the
// producing command.
func EmitArtifact(state SessionState, cmd *contract.Command, artifact contract.Artifact) {
	event := contract.NewEvent(contract.EventArtifactAvailable, cmd.Correlation)
	event.Artifact = &artifact
	state.Emit(event)
}
