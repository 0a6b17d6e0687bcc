// Package archive persists session transcripts to sqlite. It is strictly
// a bus subscriber: the core pipeline never waits on it and keeps no
// persistent state of its own.
package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/internal/events/bus"
	"github.com/agentware/maestro/pkg/contract"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id   TEXT NOT NULL,
	session_id TEXT NOT NULL,
	command_id TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL,
	timestamp  TEXT NOT NULL,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id, seq);
`

type eventRow struct {
	Seq       int64  `db:"seq"`
	EventID   string `db:"event_id"`
	SessionID string `db:"session_id"`
	CommandID string `db:"command_id"`
	Kind      string `db:"kind"`
	Timestamp string `db:"timestamp"`
	Payload   string `db:"payload"`
}

// Archive is the sqlite-backed transcript store.
type Archive struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// Open opens (and if needed initializes) the archive database.
func Open(path string, log *logger.Logger) (*Archive, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}
	return &Archive{
		db:     db,
		logger: log.WithFields(zap.String("component", "archive")),
	}, nil
}

// Record appends one event to the transcript.
func (a *Archive) Record(event contract.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = a.db.Exec(
		`INSERT INTO session_events (event_id, session_id, command_id, kind, timestamp, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(event.ID),
		string(event.Correlation.SessionID),
		string(event.Correlation.CommandID),
		string(event.Kind),
		event.Timestamp.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Events returns a session's transcript in recorded order.
func (a *Archive) Events(sessionID contract.SessionID) ([]contract.Event, error) {
	var rows []eventRow
	err := a.db.Select(&rows,
		`SELECT seq, event_id, session_id, command_id, kind, timestamp, payload
		 FROM session_events WHERE session_id = ? ORDER BY seq`,
		string(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}

	events := make([]contract.Event, 0, len(rows))
	for _, row := range rows {
		var event contract.Event
		if err := json.Unmarshal([]byte(row.Payload), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event %s: %w", row.EventID, err)
		}
		events = append(events, event)
	}
	return events, nil
}

// SessionIDs returns the ids of every archived session.
func (a *Archive) SessionIDs() ([]contract.SessionID, error) {
	var ids []string
	err := a.db.Select(&ids,
		`SELECT DISTINCT session_id FROM session_events ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived sessions: %w", err)
	}
	out := make([]contract.SessionID, len(ids))
	for i, id := range ids {
		out[i] = contract.SessionID(id)
	}
	return out, nil
}

// Attach subscribes the archive to every session subject on the bus.
func (a *Archive) Attach(eventBus bus.EventBus) (bus.Subscription, error) {
	return eventBus.Subscribe(bus.SubjectAllSessions, func(ctx context.Context, envelope *bus.Envelope) error {
		if err := a.Record(envelope.Event); err != nil {
			a.logger.Error("failed to archive event",
				zap.String("session_id", string(envelope.Event.Correlation.SessionID)),
				zap.Error(err))
			return err
		}
		return nil
	})
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}
