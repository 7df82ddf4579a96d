package persistence_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"CertLedger/internal/core"
	"CertLedger/internal/event"
	"CertLedger/internal/ledger"
	"CertLedger/internal/persistence"
	"CertLedger/internal/testutil"
)

func TestEventLogRoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	env := &event.Envelope{
		EventID:   (1 << 32) + 1,
		Tick:      1,
		TxCounter: 1,
		CommandID: uuid.New(),
		Actor:     ledger.AccountID{5, 6},
		Type:      event.EventTypeDeposited,
		Payload:   []uint64{5, 6, 1000, 1000},
	}
	out := core.Output{
		Envelope: env,
		Command: &core.Command{
			ID:     env.CommandID,
			PKey:   [4]uint64{1, 5, 6, 9},
			Params: []uint64{3, 5, 6, 0, 1000},
		},
	}

	row, err := persistence.RowFromOutput(out)
	if err != nil {
		t.Fatalf("RowFromOutput: %v", err)
	}

	writer := persistence.NewEventLogWriter(db)
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := writer.WriteEventBatch(ctx, tx, []persistence.EventRow{row}); err != nil {
		tx.Rollback()
		t.Fatalf("WriteEventBatch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Idempotency checker sees the stored command id.
	checker := persistence.NewPostgresIdempotencyChecker(db)
	seen, err := checker.IsProcessed(env.CommandID)
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if !seen {
		t.Error("IsProcessed = false for stored command, want true")
	}
	seen, err = checker.IsProcessed(uuid.New())
	if err != nil {
		t.Fatalf("IsProcessed(unknown): %v", err)
	}
	if seen {
		t.Error("IsProcessed = true for unknown command, want false")
	}

	// The stored command replays back word for word.
	snapMgr := persistence.NewSnapshotManager(db)
	cmds, lastID, err := snapMgr.LoadCommandsAfter(ctx, 0, 10)
	if err != nil {
		t.Fatalf("LoadCommandsAfter: %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	if lastID != env.EventID {
		t.Errorf("lastEventID = %d, want %d", lastID, env.EventID)
	}
	if cmds[0].ID != out.Command.ID {
		t.Errorf("command id = %v, want %v", cmds[0].ID, out.Command.ID)
	}
	if cmds[0].PKey != out.Command.PKey {
		t.Errorf("pkey = %v, want %v", cmds[0].PKey, out.Command.PKey)
	}

	// Re-inserting the same event id is a no-op.
	tx, err = db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := writer.WriteEventBatch(ctx, tx, []persistence.EventRow{row}); err != nil {
		tx.Rollback()
		t.Fatalf("duplicate WriteEventBatch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit duplicate: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_log.events`).Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Errorf("event count = %d, want 1", count)
	}
}

func TestSnapshotSaveLoad(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	snapMgr := persistence.NewSnapshotManager(db)

	loaded, err := snapMgr.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadLatestSnapshot (empty): %v", err)
	}
	if loaded != nil {
		t.Fatal("expected nil snapshot on empty table")
	}

	snap := &core.SnapshotState{
		EventID: (9 << 32) + 4,
		Tick:    9,
		Words: map[string][]uint64{
			"global": {9, 2, 50000, 0, 0, 0, 1000},
		},
		ProcessedIDs: []string{uuid.New().String()},
	}
	snap.StateHash[0] = 0x42

	size, err := snapMgr.SaveSnapshot(ctx, snap)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if size <= 0 {
		t.Errorf("snapshot size = %d, want > 0", size)
	}

	loaded, err = snapMgr.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadLatestSnapshot: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if loaded.EventID != snap.EventID {
		t.Errorf("EventID = %d, want %d", loaded.EventID, snap.EventID)
	}
	if loaded.Tick != snap.Tick {
		t.Errorf("Tick = %d, want %d", loaded.Tick, snap.Tick)
	}
	if loaded.StateHash != snap.StateHash {
		t.Errorf("StateHash = %x, want %x", loaded.StateHash, snap.StateHash)
	}
	if len(loaded.Words["global"]) != 7 {
		t.Errorf("global words = %v, want 7 entries", loaded.Words["global"])
	}
}
