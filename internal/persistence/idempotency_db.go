package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// PostgresIdempotencyChecker is the second dedup tier behind the
// in-memory LRU: a command id that aged out of the LRU is still caught
// here if it was ever persisted.
type PostgresIdempotencyChecker struct {
	db *sql.DB
}

func NewPostgresIdempotencyChecker(db *sql.DB) *PostgresIdempotencyChecker {
	return &PostgresIdempotencyChecker{db: db}
}

// IsProcessed reports whether a command id already has a persisted
// event. The short timeout keeps a slow database from stalling the
// core; a timeout here degrades to the ON CONFLICT backstop at write
// time.
func (pic *PostgresIdempotencyChecker) IsProcessed(commandID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var exists int
	err := pic.db.QueryRowContext(ctx, `
		SELECT 1 FROM event_log.events WHERE command_id = $1 LIMIT 1
	`, commandID.String()).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
