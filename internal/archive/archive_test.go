package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/internal/events/bus"
	"github.com/agentware/maestro/pkg/contract"
)

func openArchive(t *testing.T) *Archive {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console"})
	require.NoError(t, err)
	a, err := Open(filepath.Join(t.TempDir(), "transcripts.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func completedEvent(sessionID contract.SessionID, cmdID contract.CommandID) contract.Event {
	event := contract.NewEvent(contract.EventCommandCompleted, contract.Correlation{
		SessionID: sessionID,
		CommandID: cmdID,
	})
	event.Completed = &contract.CompletedPayload{Outcome: contract.OutcomeSuccess, Message: "done"}
	return event
}

func TestRecordAndReplay(t *testing.T) {
	a := openArchive(t)

	first := completedEvent("s-1", "c-1")
	second := completedEvent("s-1", "c-2")
	other := completedEvent("s-2", "c-3")
	require.NoError(t, a.Record(first))
	require.NoError(t, a.Record(second))
	require.NoError(t, a.Record(other))

	events, err := a.Events("s-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)
	require.NotNil(t, events[0].Completed)
	assert.Equal(t, contract.OutcomeSuccess, events[0].Completed.Outcome)

	ids, err := a.SessionIDs()
	require.NoError(t, err)
	assert.Equal(t, []contract.SessionID{"s-1", "s-2"}, ids)
}

func TestEmptyTranscript(t *testing.T) {
	a := openArchive(t)
	events, err := a.Events("s-absent")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAttachArchivesBusTraffic(t *testing.T) {
	a := openArchive(t)
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console"})
	require.NoError(t, err)
	memoryBus := bus.NewMemoryEventBus(log)
	t.Cleanup(memoryBus.Close)

	sub, err := a.Attach(memoryBus)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	event := completedEvent("s-9", "c-9")
	require.NoError(t, memoryBus.Publish(context.Background(),
		bus.SessionSubject("s-9"), bus.Wrap("test", event)))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events, err := a.Events("s-9")
		require.NoError(t, err)
		if len(events) == 1 {
			assert.Equal(t, event.ID, events[0].ID)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("event never reached the archive")
}
