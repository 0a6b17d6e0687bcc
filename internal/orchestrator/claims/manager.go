// Package claims guarantees exclusive ownership of work-item ids across
// the process, with timeouts, renewal and per-agent/per-session caps.
package claims

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/pkg/contract"
)

// Outcome classifies the result of a claim operation.
type Outcome string

const (
	// OutcomeGranted means the claim was installed or refreshed.
	OutcomeGranted Outcome = "granted"
	// OutcomeAlreadyClaimed means another assignee holds an unexpired claim.
	OutcomeAlreadyClaimed Outcome = "already-claimed"
	// OutcomeRejected means a cap was exceeded or the assignee mismatched.
	OutcomeRejected Outcome = "rejected"
	// OutcomeUnknown means no claim exists for the work item.
	OutcomeUnknown Outcome = "unknown"
)

// ActiveClaim is a live reservation of a work item by an assignee.
type ActiveClaim struct {
	WorkItem  contract.WorkItemRef `json:"workItem"`
	Assignee  string               `json:"assignee"`
	SessionID contract.SessionID   `json:"sessionId"`
	ClaimedAt time.Time            `json:"claimedAt"`
	ExpiresAt time.Time            `json:"expiresAt"`
}

// Config holds claim manager configuration.
type Config struct {
	DefaultClaimTimeout           time.Duration
	MaxConcurrentClaimsPerAgent   int
	MaxConcurrentClaimsPerSession int
	RenewalWindow                 time.Duration
	AutoReleaseOnInactivity       bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		DefaultClaimTimeout:           2 * time.Hour,
		MaxConcurrentClaimsPerAgent:   3,
		MaxConcurrentClaimsPerSession: 5,
		RenewalWindow:                 30 * time.Minute,
		AutoReleaseOnInactivity:       true,
	}
}

// Manager tracks claims keyed by work-item id. One mutex guards the claim
// table; every operation on a given work item is linearizable.
type Manager struct {
	mu     sync.Mutex
	claims map[string]*ActiveClaim

	config Config
	now    func() time.Time
	logger *logger.Logger
}

// NewManager creates a claim manager.
func NewManager(cfg Config, log *logger.Logger) *Manager {
	if cfg.DefaultClaimTimeout <= 0 {
		cfg.DefaultClaimTimeout = DefaultConfig().DefaultClaimTimeout
	}
	if cfg.MaxConcurrentClaimsPerAgent <= 0 {
		cfg.MaxConcurrentClaimsPerAgent = DefaultConfig().MaxConcurrentClaimsPerAgent
	}
	if cfg.MaxConcurrentClaimsPerSession <= 0 {
		cfg.MaxConcurrentClaimsPerSession = DefaultConfig().MaxConcurrentClaimsPerSession
	}
	return &Manager{
		claims: make(map[string]*ActiveClaim),
		config: cfg,
		now:    time.Now,
		logger: log.WithFields(zap.String("component", "claims")),
	}
}

// TryClaim installs a claim with the default timeout.
func (m *Manager) TryClaim(workItem contract.WorkItemRef, assignee string, sessionID contract.SessionID) Outcome {
	return m.TryClaimFor(workItem, assignee, sessionID, m.config.DefaultClaimTimeout)
}

// TryClaimFor installs a claim expiring after timeout. A negative timeout
// falls back to the default; a zero timeout yields an immediately expired
// claim that the next cleanup removes. Re-claiming by the current holder
// refreshes the expiration without counting as a new claim.
func (m *Manager) TryClaimFor(workItem contract.WorkItemRef, assignee string, sessionID contract.SessionID, timeout time.Duration) Outcome {
	if timeout < 0 {
		timeout = m.config.DefaultClaimTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	existing, ok := m.claims[workItem.ID]
	if ok && existing.Assignee != assignee && existing.ExpiresAt.After(now) {
		return OutcomeAlreadyClaimed
	}

	// A refresh of a live claim by its holder does not count against the
	// caps; an expired claim re-enters through them.
	refresh := ok && existing.Assignee == assignee && existing.ExpiresAt.After(now)
	if !refresh {
		if m.countForAssigneeLocked(assignee, now) >= m.config.MaxConcurrentClaimsPerAgent {
			m.logger.Debug("claim rejected, per-agent cap reached",
				zap.String("work_item", workItem.ID),
				zap.String("assignee", assignee))
			return OutcomeRejected
		}
		if m.countForSessionLocked(sessionID, now) >= m.config.MaxConcurrentClaimsPerSession {
			m.logger.Debug("claim rejected, per-session cap reached",
				zap.String("work_item", workItem.ID),
				zap.String("session_id", string(sessionID)))
			return OutcomeRejected
		}
	}

	m.claims[workItem.ID] = &ActiveClaim{
		WorkItem:  workItem,
		Assignee:  assignee,
		SessionID: sessionID,
		ClaimedAt: now,
		ExpiresAt: now.Add(timeout),
	}

	m.logger.Debug("claim granted",
		zap.String("work_item", workItem.ID),
		zap.String("assignee", assignee),
		zap.Duration("timeout", timeout))
	return OutcomeGranted
}

// Release removes a claim if the assignee matches the holder.
func (m *Manager) Release(workItemID, assignee string) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	claim, ok := m.claims[workItemID]
	if !ok {
		return OutcomeUnknown
	}
	if claim.Assignee != assignee {
		return OutcomeRejected
	}

	delete(m.claims, workItemID)
	m.logger.Debug("claim released",
		zap.String("work_item", workItemID),
		zap.String("assignee", assignee))
	return OutcomeGranted
}

// Renew extends a claim held by the assignee. A non-positive extension
// falls back to the default timeout. Renewal succeeds even after
// expiration as long as cleanup has not yet removed the claim.
func (m *Manager) Renew(workItemID, assignee string, extension time.Duration) Outcome {
	if extension <= 0 {
		extension = m.config.DefaultClaimTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	claim, ok := m.claims[workItemID]
	if !ok {
		return OutcomeUnknown
	}
	if claim.Assignee != assignee {
		return OutcomeRejected
	}

	claim.ExpiresAt = m.now().Add(extension)
	return OutcomeGranted
}

// CleanupExpired removes and returns every claim whose expiration has
// passed. Concurrent callers may each report a non-overlapping subset; the
// union is the full expired set.
func (m *Manager) CleanupExpired() []ActiveClaim {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var removed []ActiveClaim
	for id, claim := range m.claims {
		if !claim.ExpiresAt.After(now) {
			removed = append(removed, *claim)
			delete(m.claims, id)
		}
	}

	if len(removed) > 0 {
		m.logger.Debug("expired claims removed", zap.Int("count", len(removed)))
	}
	return removed
}

// GetClaim returns the unexpired claim for a work item, if any.
func (m *Manager) GetClaim(workItemID string) (ActiveClaim, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	claim, ok := m.claims[workItemID]
	if !ok || !claim.ExpiresAt.After(m.now()) {
		return ActiveClaim{}, false
	}
	return *claim, true
}

// GetClaimsForAssignee returns a snapshot of the assignee's unexpired claims.
func (m *Manager) GetClaimsForAssignee(assignee string) []ActiveClaim {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var result []ActiveClaim
	for _, claim := range m.claims {
		if claim.Assignee == assignee && claim.ExpiresAt.After(now) {
			result = append(result, *claim)
		}
	}
	return result
}

// GetActiveClaims returns a snapshot of all unexpired claims.
func (m *Manager) GetActiveClaims() []ActiveClaim {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	result := make([]ActiveClaim, 0, len(m.claims))
	for _, claim := range m.claims {
		if claim.ExpiresAt.After(now) {
			result = append(result, *claim)
		}
	}
	return result
}

// ReleaseForSession drops every claim held under a session on teardown.
// A no-op when AutoReleaseOnInactivity is disabled; the claims then run
// out their timeouts.
func (m *Manager) ReleaseForSession(sessionID contract.SessionID) int {
	if !m.config.AutoReleaseOnInactivity {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for id, claim := range m.claims {
		if claim.SessionID == sessionID {
			delete(m.claims, id)
			count++
		}
	}
	if count > 0 {
		m.logger.Debug("released claims on session teardown",
			zap.String("session_id", string(sessionID)),
			zap.Int("count", count))
	}
	return count
}

// countForAssigneeLocked counts unexpired claims held by the assignee.
// Caller holds m.mu.
func (m *Manager) countForAssigneeLocked(assignee string, now time.Time) int {
	count := 0
	for _, claim := range m.claims {
		if claim.Assignee == assignee && claim.ExpiresAt.After(now) {
			count++
		}
	}
	return count
}

// countForSessionLocked counts unexpired claims held under the session.
// Caller holds m.mu.
func (m *Manager) countForSessionLocked(sessionID contract.SessionID, now time.Time) int {
	count := 0
	for _, claim := range m.claims {
		if claim.SessionID == sessionID && claim.ExpiresAt.After(now) {
			count++
		}
	}
	return count
}
