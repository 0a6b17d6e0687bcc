// Package adapter defines the surface adapters plug into and the registry
// that routes commands to them.
package adapter

import (
	"context"
	"sync"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/pkg/contract"
)

// SessionState is the only handle an adapter gets into the core. Adapters
// must not retain it past the return of HandleCommand.
type SessionState interface {
	// Emit appends an event to the session log and routes it to every
	// subscriber.
	Emit(event contract.Event)

	// WorkspacePath is the directory owned by the session.
	WorkspacePath() string

	// Repo is the session's repository reference.
	Repo() contract.RepoRef

	// WorkItem is the work item bound to the session, if any.
	WorkItem() *contract.WorkItemRef

	// Policy is the session's policy profile.
	Policy() contract.PolicyProfile

	// Config is the full session configuration.
	Config() contract.SessionConfig

	// Logger is a per-session logger.
	Logger() *logger.Logger

	// Context is cancelled when the session is aborted. Adapters are
	// expected to honor it and complete the command with "cancelled".
	Context() context.Context
}

// Adapter is a pluggable handler for a subset of command kinds. An adapter
// appends events to the session state, including exactly one terminal
// command-completed per handled command, before HandleCommand returns.
type Adapter interface {
	// CanHandle reports whether the adapter handles the command.
	CanHandle(cmd *contract.Command) bool

	// HandleCommand executes the command against the session.
	HandleCommand(cmd *contract.Command, state SessionState)
}

// Registration pairs an adapter with its registry name.
type Registration struct {
	Name    string
	Adapter Adapter
}

// Registry holds adapters in registration order; the first adapter whose
// CanHandle returns true wins for a given command.
type Registry struct {
	mu      sync.RWMutex
	entries []Registration
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends an adapter. Order of calls defines dispatch priority.
func (r *Registry) Register(name string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Registration{Name: name, Adapter: a})
}

// Find returns the first registered adapter that can handle the command.
func (r *Registry) Find(cmd *contract.Command) (Adapter, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.entries {
		if entry.Adapter.CanHandle(cmd) {
			return entry.Adapter, entry.Name, true
		}
	}
	return nil, "", false
}

// Names returns the registered adapter names in priority order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.entries))
	for i, entry := range r.entries {
		names[i] = entry.Name
	}
	return names
}
