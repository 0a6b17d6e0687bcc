// Package workspace assigns each session an exclusive working directory.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/pkg/contract"
)

// ErrPathInUse is returned when a caller-supplied workspace path is
// already owned by a live session.
var ErrPathInUse = errors.New("workspace path already in use by a live session")

// Config holds workspace provider configuration.
type Config struct {
	// Root is the directory fresh workspaces are allocated under. Empty
	// means the OS temp directory.
	Root string

	// CleanupOnTeardown removes provider-created directories on release.
	CleanupOnTeardown bool
}

// Provider allocates and tears down per-session workspaces. Two live
// sessions never share a path.
type Provider struct {
	mu      sync.Mutex
	owned   map[string]contract.SessionID // path -> owning session
	created map[contract.SessionID]string // session -> path the provider created

	config Config
	logger *logger.Logger
}

// NewProvider creates a workspace provider.
func NewProvider(cfg Config, log *logger.Logger) *Provider {
	if cfg.Root == "" {
		cfg.Root = os.TempDir()
	}
	return &Provider{
		owned:   make(map[string]contract.SessionID),
		created: make(map[contract.SessionID]string),
		config:  cfg,
		logger:  log.WithFields(zap.String("component", "workspace")),
	}
}

// Acquire returns the workspace path owned by the session. A blank path in
// the config allocates a fresh per-session directory under the root; a
// caller-supplied path is adopted as-is. The directory exists on return.
func (p *Provider) Acquire(cfg contract.SessionConfig) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path := cfg.Workspace.Path
	allocated := path == ""
	if allocated {
		path = filepath.Join(p.config.Root, "maestro-session-"+string(cfg.SessionID))
	}
	path = filepath.Clean(path)

	if owner, ok := p.owned[path]; ok && owner != cfg.SessionID {
		return "", fmt.Errorf("%w: %s (owner %s)", ErrPathInUse, path, owner)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workspace directory: %w", err)
	}

	p.owned[path] = cfg.SessionID
	if allocated {
		p.created[cfg.SessionID] = path
	}

	p.logger.Debug("workspace acquired",
		zap.String("session_id", string(cfg.SessionID)),
		zap.String("path", path),
		zap.Bool("allocated", allocated))
	return path, nil
}

// Release tears down the session's workspace. Directories the provider
// created are removed when cleanup is enabled; adopted paths are left
// untouched.
func (p *Provider) Release(sessionID contract.SessionID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var path string
	for candidate, owner := range p.owned {
		if owner == sessionID {
			path = candidate
			break
		}
	}
	if path == "" {
		return nil
	}
	delete(p.owned, path)

	createdPath, created := p.created[sessionID]
	delete(p.created, sessionID)

	if created && p.config.CleanupOnTeardown {
		if err := os.RemoveAll(createdPath); err != nil {
			return fmt.Errorf("failed to remove workspace directory: %w", err)
		}
		p.logger.Debug("workspace removed",
			zap.String("session_id", string(sessionID)),
			zap.String("path", createdPath))
	}
	return nil
}
