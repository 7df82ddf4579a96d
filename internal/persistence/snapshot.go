package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"CertLedger/internal/core"
)

// SnapshotManager stores and loads engine state images. A snapshot
// plus the events past its watermark is a complete restart: load the
// image, then replay forward.
type SnapshotManager struct {
	db *sql.DB
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists an engine state image keyed by its event id
// watermark.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *core.SnapshotState) (int, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, event_id, data, state_hash, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $5
	`, uuid.New(), int64(snap.EventID), data, snap.StateHash[:], len(data), time.Now())
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// LoadLatestSnapshot returns the newest snapshot, or nil on a cold
// start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*core.SnapshotState, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		ORDER BY event_id DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap core.SnapshotState
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// LoadCommandsAfter pages through stored commands past the given event
// id, in event order, for replay.
func (sm *SnapshotManager) LoadCommandsAfter(ctx context.Context, afterEventID uint64, limit int) ([]*core.Command, uint64, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT event_id, command_id, command
		FROM event_log.events
		WHERE event_id > $1
		ORDER BY event_id ASC
		LIMIT $2
	`, int64(afterEventID), limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		commands []*core.Command
		last     uint64
	)
	for rows.Next() {
		var (
			eventID   int64
			commandID string
			data      []byte
		)
		if err := rows.Scan(&eventID, &commandID, &data); err != nil {
			return nil, 0, err
		}
		cmd, err := commandFromStored(commandID, data)
		if err != nil {
			return nil, 0, fmt.Errorf("event %d: %w", eventID, err)
		}
		commands = append(commands, cmd)
		last = uint64(eventID)
	}
	return commands, last, rows.Err()
}

// GetLatestEventID returns the highest event id in the log, or zero
// when the log is empty.
func (sm *SnapshotManager) GetLatestEventID(ctx context.Context) (uint64, error) {
	var id sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(event_id) FROM event_log.events
	`).Scan(&id)
	if err != nil {
		return 0, err
	}
	if !id.Valid {
		return 0, nil
	}
	return uint64(id.Int64), nil
}
