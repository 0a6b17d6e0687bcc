// Package ratelimit implements token-bucket admission for commands.
//
// Three buckets are consulted per command: the process-wide global bucket,
// the session bucket derived from the session policy's limits, and a
// per-command cap bucket. All must admit; a throttle carries the earliest
// time a retry can succeed.
package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/pkg/contract"
)

// Scope names the bucket that throttled a command.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeSession Scope = "session"
	ScopeCommand Scope = "command"
)

// RetryNever is the retry hint for a bucket that never refills
// (callsPerMinute 0 with burst 0).
var RetryNever = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Decision is the outcome of an admission request.
type Decision struct {
	Allowed    bool
	Scope      Scope
	RetryAfter time.Time
}

// Allowed is the decision admitting a command.
var Allowed = Decision{Allowed: true}

type bucketKey struct {
	scope   Scope
	session contract.SessionID
	command contract.CommandKind
}

// bucket is a single token bucket. Each bucket has its own mutex; the
// limiter holds all applicable bucket locks for the duration of one
// admission so a throttled request deducts from none of them.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	rate       float64 // tokens per second
	lastRefill time.Time
}

func newBucket(callsPerMinute, burst int, now time.Time) *bucket {
	return &bucket{
		tokens:     float64(burst),
		capacity:   float64(burst),
		rate:       float64(callsPerMinute) / 60.0,
		lastRefill: now,
	}
}

// refillLocked advances the bucket to now. Caller holds b.mu.
func (b *bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.rate)
		b.lastRefill = now
	}
}

// retryAtLocked computes when one token will be available. Caller holds
// b.mu and has refilled.
func (b *bucket) retryAtLocked(now time.Time) time.Time {
	if b.rate <= 0 {
		return RetryNever
	}
	wait := (1 - b.tokens) / b.rate
	return now.Add(time.Duration(wait * float64(time.Second)))
}

// Limiter maintains named token buckets, created lazily per scope.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[bucketKey]*bucket

	global *contract.RateLimits

	now    func() time.Time
	logger *logger.Logger
}

// NewLimiter creates a limiter. A nil global disables the process-wide
// bucket.
func NewLimiter(global *contract.RateLimits, log *logger.Logger) *Limiter {
	return &Limiter{
		buckets: make(map[bucketKey]*bucket),
		global:  global,
		now:     time.Now,
		logger:  log.WithFields(zap.String("component", "ratelimit")),
	}
}

// Admit decides whether a command may proceed. Buckets are consulted in
// the order global, session, per-command cap; all must admit. The first
// throttling scope names the decision and RetryAfter is the maximum
// across throttled buckets.
func (l *Limiter) Admit(sessionID contract.SessionID, kind contract.CommandKind, limits *contract.RateLimits) Decision {
	now := l.now()

	type scoped struct {
		scope Scope
		b     *bucket
	}
	var applicable []scoped

	if l.global != nil {
		applicable = append(applicable, scoped{ScopeGlobal, l.bucketFor(
			bucketKey{scope: ScopeGlobal}, l.global.CallsPerMinute, l.global.Burst, now)})
	}

	if limits != nil && sessionBucketConfigured(limits) {
		applicable = append(applicable, scoped{ScopeSession, l.bucketFor(
			bucketKey{scope: ScopeSession, session: sessionID}, limits.CallsPerMinute, limits.Burst, now)})
	}

	if limits != nil {
		if cap, ok := limits.PerCommandCaps[string(kind)]; ok {
			// A per-command cap is itself a bucket: rate = cap per minute,
			// burst = cap.
			applicable = append(applicable, scoped{ScopeCommand, l.bucketFor(
				bucketKey{scope: ScopeCommand, session: sessionID, command: kind}, cap, cap, now)})
		}
	}

	if len(applicable) == 0 {
		return Allowed
	}

	// Hold every applicable lock while deciding so the deduction is atomic
	// across buckets. Lock order is stable (global, session, command).
	for _, s := range applicable {
		s.b.mu.Lock()
	}
	defer func() {
		for i := len(applicable) - 1; i >= 0; i-- {
			applicable[i].b.mu.Unlock()
		}
	}()

	decision := Allowed
	for _, s := range applicable {
		s.b.refillLocked(now)
		if s.b.tokens >= 1 {
			continue
		}
		retry := s.b.retryAtLocked(now)
		if decision.Allowed {
			decision = Decision{Scope: s.scope, RetryAfter: retry}
		} else if retry.After(decision.RetryAfter) {
			decision.RetryAfter = retry
		}
	}

	if !decision.Allowed {
		l.logger.Debug("command throttled",
			zap.String("session_id", string(sessionID)),
			zap.String("kind", string(kind)),
			zap.String("scope", string(decision.Scope)),
			zap.Time("retry_after", decision.RetryAfter))
		return decision
	}

	for _, s := range applicable {
		s.b.tokens--
	}
	return decision
}

// bucketFor returns the bucket for the key, creating it lazily.
func (l *Limiter) bucketFor(key bucketKey, callsPerMinute, burst int, now time.Time) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		return b
	}
	b = newBucket(callsPerMinute, burst, now)
	l.buckets[key] = b
	return b
}

// ForgetSession drops the buckets owned by a torn-down session.
func (l *Limiter) ForgetSession(sessionID contract.SessionID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.buckets {
		if key.session == sessionID {
			delete(l.buckets, key)
		}
	}
}

// sessionBucketConfigured reports whether the limits describe a session
// bucket. Limits carrying only per-command caps do not.
func sessionBucketConfigured(limits *contract.RateLimits) bool {
	if limits.CallsPerMinute == 0 && limits.Burst == 0 && len(limits.PerCommandCaps) > 0 {
		return false
	}
	return true
}
