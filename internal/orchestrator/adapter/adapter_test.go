package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentware/maestro/pkg/contract"
)

type kindAdapter struct {
	kinds map[contract.CommandKind]bool
}

func (a *kindAdapter) CanHandle(cmd *contract.Command) bool {
	return a.kinds[cmd.Kind]
}

func (a *kindAdapter) HandleCommand(cmd *contract.Command, state SessionState) {}

func handles(kinds ...contract.CommandKind) *kindAdapter {
	m := make(map[contract.CommandKind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return &kindAdapter{kinds: m}
}

func TestRegistryDispatchOrder(t *testing.T) {
	r := NewRegistry()
	first := handles(contract.CommandGetDiff)
	second := handles(contract.CommandGetDiff, contract.CommandPush)
	r.Register("first", first)
	r.Register("second", second)

	cmd := contract.NewCommand(contract.CommandGetDiff, contract.Correlation{SessionID: "s-1"})
	got, name, ok := r.Find(cmd)
	assert.True(t, ok)
	assert.Equal(t, "first", name)
	assert.Same(t, Adapter(first), got)

	// The second adapter still wins for kinds the first does not claim.
	push := contract.NewCommand(contract.CommandPush, contract.Correlation{SessionID: "s-1"})
	_, name, ok = r.Find(push)
	assert.True(t, ok)
	assert.Equal(t, "second", name)
}

func TestRegistryNoCapableAdapter(t *testing.T) {
	r := NewRegistry()
	r.Register("vcs", handles(contract.CommandGetDiff))

	cmd := contract.NewCommand(contract.CommandRunTests, contract.Correlation{SessionID: "s-1"})
	_, _, ok := r.Find(cmd)
	assert.False(t, ok)
}

func TestRegistryNamesStable(t *testing.T) {
	r := NewRegistry()
	r.Register("vcs", handles(contract.CommandGetDiff))
	r.Register("tracker", handles(contract.CommandComment))
	r.Register("build", handles(contract.CommandRunTests))

	assert.Equal(t, []string{"vcs", "tracker", "build"}, r.Names())
}
