// Package policy implements per-session command admission.
//
// Enforce is a pure function over a command, a policy profile and the
// session history the manager observed; it never touches session state
// itself.
package policy

import (
	"github.com/agentware/maestro/pkg/contract"
)

// Rule names carried on rejection events.
const (
	RuleNotInWhitelist     = "Command not in whitelist"
	RuleInBlacklist        = "Command in blacklist"
	RuleProtectedBranch    = "Protected branch"
	RuleMaxFilesPerCommit  = "Max files per commit"
	RuleTestsRequired      = "Tests required"
	RuleApprovalRequired   = "Approval required"
	RuleAllowedTransitions = "Allowed transitions"
)

// Rejection reasons carried on rejection events.
const (
	ReasonPolicyViolation    = "Policy violation"
	ReasonProtectedBranch    = "Protected branch"
	ReasonTooManyFiles       = "Too many files"
	ReasonTestsRequired      = "Tests required before push"
	ReasonApprovalRequired   = "Approval required"
	ReasonTransitionDisallow = "Transition not allowed"
)

// Observations is the session history the enforcer needs. The session
// manager supplies it; the enforcer holds no state of its own.
type Observations struct {
	// TestsPassedSinceCommit is true when a successful run-tests completion
	// has been observed since the last commit.
	TestsPassedSinceCommit bool

	// ApprovalGranted is the session's pending-approval flag.
	ApprovalGranted bool
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	Reason  string
	Rule    string
}

// Allow is the decision admitting a command.
var Allow = Decision{Allowed: true}

func reject(reason, rule string) Decision {
	return Decision{Reason: reason, Rule: rule}
}

// Enforce checks a command against the profile. Checks run in a fixed
// order; the first match wins and carries a distinct rule name.
func Enforce(cmd *contract.Command, profile *contract.PolicyProfile, obs Observations) Decision {
	if profile.HasWhitelist() && !profile.WhitelistAllows(cmd.Kind) {
		return reject(ReasonPolicyViolation, RuleNotInWhitelist)
	}

	if profile.BlacklistDenies(cmd.Kind) {
		return reject(ReasonPolicyViolation, RuleInBlacklist)
	}

	if cmd.MutatesBranch() && profile.IsProtectedBranch(cmd.TargetBranch()) {
		return reject(ReasonProtectedBranch, RuleProtectedBranch)
	}

	if cmd.Kind == contract.CommandCommit && profile.MaxFilesPerCommit > 0 &&
		cmd.Commit != nil && len(cmd.Commit.IncludePaths) > profile.MaxFilesPerCommit {
		return reject(ReasonTooManyFiles, RuleMaxFilesPerCommit)
	}

	if cmd.Kind == contract.CommandPush {
		if profile.RequireTestsBeforePush && !obs.TestsPassedSinceCommit {
			return reject(ReasonTestsRequired, RuleTestsRequired)
		}
		if profile.RequireApprovalForPush && !obs.ApprovalGranted {
			return reject(ReasonApprovalRequired, RuleApprovalRequired)
		}
	}

	if cmd.Kind == contract.CommandTransitionTicket && cmd.TransitionTicket != nil &&
		!profile.TransitionAllowed(cmd.TransitionTicket.ToState) {
		return reject(ReasonTransitionDisallow, RuleAllowedTransitions)
	}

	return Allow
}
