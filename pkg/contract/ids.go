// Package contract defines the shared vocabulary of the orchestrator:
// identifiers, commands, events, artifacts, policy profiles and session
// configuration. Both the core and adapters depend on this package and
// nothing else in the repository.
package contract

import "github.com/google/uuid"

// SessionID identifies an orchestrator session.
type SessionID string

// CommandID identifies a published command.
type CommandID string

// EventID identifies an emitted event.
type EventID string

// PlanNodeID identifies a node in an agent plan.
type PlanNodeID string

// ArtifactID identifies a produced artifact.
type ArtifactID string

// NewSessionID returns a fresh unique session id.
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// NewCommandID returns a fresh unique command id.
func NewCommandID() CommandID {
	return CommandID(uuid.New().String())
}

// NewEventID returns a fresh unique event id.
func NewEventID() EventID {
	return EventID(uuid.New().String())
}

// NewArtifactID returns a fresh unique artifact id.
func NewArtifactID() ArtifactID {
	return ArtifactID(uuid.New().String())
}

// WorkItemRef references a work item in an issue tracker.
// ProviderHint optionally names the tracker the id belongs to.
type WorkItemRef struct {
	ID           string `json:"id"`
	ProviderHint string `json:"providerHint,omitempty"`
}

// RepoRef references a version-controlled repository.
type RepoRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// WorkspaceRef references a filesystem workspace. An empty path asks the
// workspace provider to allocate a fresh per-session directory.
type WorkspaceRef struct {
	Path string `json:"path,omitempty"`
}

// Correlation is the provenance tuple attached to every command and event.
// Events that answer a command carry that command's id and the original
// issuer agent id.
type Correlation struct {
	SessionID       SessionID  `json:"sessionId"`
	CommandID       CommandID  `json:"commandId,omitempty"`
	ParentCommandID CommandID  `json:"parentCommandId,omitempty"`
	PlanNodeID      PlanNodeID `json:"planNodeId,omitempty"`
	IssuerAgentID   string     `json:"issuerAgentId,omitempty"`
}
