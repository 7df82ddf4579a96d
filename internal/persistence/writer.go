package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"CertLedger/internal/core"
)

// EventLogWriter batch-writes applied events to Postgres. Multi-row
// INSERT with ON CONFLICT DO NOTHING keeps writes idempotent across
// worker restarts and NATS redeliveries.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow is one row of event_log.events. The original command words
// are stored alongside the event payload so the log alone is enough to
// rebuild state by replay.
type EventRow struct {
	EventID   int64
	Tick      int64
	TxCounter int64
	CommandID string
	Actor     string
	EventType string
	Payload   []byte // JSON array of payload words (decimal strings)
	Command   []byte // JSON {pkey, params} of the originating command
	StateHash []byte
	PrevHash  []byte
	CreatedAt time.Time
}

// storedCommand is the persisted command image. Words are decimal
// strings, the same convention as the inbound wire format.
type storedCommand struct {
	PKey   []string `json:"pkey"`
	Params []string `json:"params"`
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// RowFromOutput flattens a core output into its storable row.
func RowFromOutput(out core.Output) (EventRow, error) {
	env := out.Envelope

	payload, err := json.Marshal(wordStrings(env.Payload))
	if err != nil {
		return EventRow{}, fmt.Errorf("marshal payload: %w", err)
	}

	cmd, err := json.Marshal(storedCommand{
		PKey:   wordStrings(out.Command.PKey[:]),
		Params: wordStrings(out.Command.Params),
	})
	if err != nil {
		return EventRow{}, fmt.Errorf("marshal command: %w", err)
	}

	return EventRow{
		EventID:   int64(env.EventID),
		Tick:      int64(env.Tick),
		TxCounter: int64(env.TxCounter),
		CommandID: env.CommandID.String(),
		Actor:     env.Actor.String(),
		EventType: env.Type.String(),
		Payload:   payload,
		Command:   cmd,
		StateHash: env.StateHash[:],
		PrevHash:  env.PrevHash[:],
		CreatedAt: time.Now(),
	}, nil
}

func wordStrings(words []uint64) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strconv.FormatUint(w, 10)
	}
	return out
}

// WriteEventBatch inserts a batch inside the caller's transaction.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(event_id, tick, tx_counter, command_id, actor, event_type, payload, command, state_hash, prev_hash, created_at)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*11)

	for i, e := range events {
		base := i * 11
		placeholders := make([]string, 11)
		for p := range placeholders {
			placeholders[p] = "$" + strconv.Itoa(base+p+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
		args = append(args,
			e.EventID, e.Tick, e.TxCounter, e.CommandID, e.Actor,
			e.EventType, e.Payload, e.Command, e.StateHash, e.PrevHash, e.CreatedAt,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (event_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// commandFromStored rebuilds a replayable core command from its stored
// image.
func commandFromStored(commandID string, data []byte) (*core.Command, error) {
	var sc storedCommand
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("unmarshal stored command: %w", err)
	}
	if len(sc.PKey) != 4 {
		return nil, fmt.Errorf("stored command: want 4 pkey words, got %d", len(sc.PKey))
	}

	cmd := &core.Command{}
	var err error
	if cmd.ID, err = uuid.Parse(commandID); err != nil {
		return nil, fmt.Errorf("stored command_id: %w", err)
	}
	for i, s := range sc.PKey {
		if cmd.PKey[i], err = strconv.ParseUint(s, 10, 64); err != nil {
			return nil, fmt.Errorf("stored pkey[%d]: %w", i, err)
		}
	}
	cmd.Params = make([]uint64, len(sc.Params))
	for i, s := range sc.Params {
		if cmd.Params[i], err = strconv.ParseUint(s, 10, 64); err != nil {
			return nil, fmt.Errorf("stored params[%d]: %w", i, err)
		}
	}
	return cmd, nil
}
