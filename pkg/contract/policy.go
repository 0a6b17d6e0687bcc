package contract

// RateLimits configures token-bucket admission for a scope. A zero
// CallsPerMinute together with a zero Burst means "always throttle". A nil
// RateLimits on a profile means no session-level limit.
type RateLimits struct {
	CallsPerMinute int            `json:"callsPerMinute,omitempty" mapstructure:"callsPerMinute" yaml:"callsPerMinute,omitempty"`
	Burst          int            `json:"burst,omitempty" mapstructure:"burst" yaml:"burst,omitempty"`
	PerCommandCaps map[string]int `json:"perCommandCaps,omitempty" mapstructure:"perCommandCaps" yaml:"perCommandCaps,omitempty"`
}

// PolicyProfile is a named bundle of admission rules applied to a session.
// A nil whitelist allows every kind; an empty one allows none.
type PolicyProfile struct {
	Name                       string        `json:"name" mapstructure:"name" yaml:"name"`
	CommandWhitelist           []CommandKind `json:"commandWhitelist,omitempty" mapstructure:"commandWhitelist" yaml:"commandWhitelist,omitempty"`
	CommandBlacklist           []CommandKind `json:"commandBlacklist,omitempty" mapstructure:"commandBlacklist" yaml:"commandBlacklist,omitempty"`
	ProtectedBranches          []string      `json:"protectedBranches,omitempty" mapstructure:"protectedBranches" yaml:"protectedBranches,omitempty"`
	MaxFilesPerCommit          int           `json:"maxFilesPerCommit,omitempty" mapstructure:"maxFilesPerCommit" yaml:"maxFilesPerCommit,omitempty"`
	RequireTestsBeforePush     bool          `json:"requireTestsBeforePush,omitempty" mapstructure:"requireTestsBeforePush" yaml:"requireTestsBeforePush,omitempty"`
	RequireApprovalForPush     bool          `json:"requireApprovalForPush,omitempty" mapstructure:"requireApprovalForPush" yaml:"requireApprovalForPush,omitempty"`
	AllowedWorkItemTransitions []string      `json:"allowedWorkItemTransitions,omitempty" mapstructure:"allowedWorkItemTransitions" yaml:"allowedWorkItemTransitions,omitempty"`
	Limits                     *RateLimits   `json:"limits,omitempty" mapstructure:"limits" yaml:"limits,omitempty"`
}

// LivePolicy gates real-world side effects. Adapters respect it; the
// orchestrator never forces real effects.
type LivePolicy struct {
	DryRun    bool `json:"dryRun" mapstructure:"dryRun" yaml:"dryRun"`
	AllowPush bool `json:"allowPush" mapstructure:"allowPush" yaml:"allowPush"`
}

// DefaultLivePolicy is the safe default: simulate everything, push nothing.
func DefaultLivePolicy() LivePolicy {
	return LivePolicy{DryRun: true, AllowPush: false}
}

// HasWhitelist reports whether the profile restricts kinds to a whitelist.
func (p *PolicyProfile) HasWhitelist() bool {
	return p.CommandWhitelist != nil
}

// WhitelistAllows reports whether the kind is in the whitelist.
func (p *PolicyProfile) WhitelistAllows(kind CommandKind) bool {
	for _, k := range p.CommandWhitelist {
		if k == kind {
			return true
		}
	}
	return false
}

// BlacklistDenies reports whether the kind is in the blacklist.
func (p *PolicyProfile) BlacklistDenies(kind CommandKind) bool {
	for _, k := range p.CommandBlacklist {
		if k == kind {
			return true
		}
	}
	return false
}

// IsProtectedBranch reports whether the branch is protected by the profile.
func (p *PolicyProfile) IsProtectedBranch(branch string) bool {
	for _, b := range p.ProtectedBranches {
		if b == branch {
			return true
		}
	}
	return false
}

// TransitionAllowed reports whether a work-item transition to the given
// state is allowed. A nil AllowedWorkItemTransitions allows every state.
func (p *PolicyProfile) TransitionAllowed(state string) bool {
	if p.AllowedWorkItemTransitions == nil {
		return true
	}
	for _, s := range p.AllowedWorkItemTransitions {
		if s == state {
			return true
		}
	}
	return false
}
