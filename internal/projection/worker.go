package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"CertLedger/internal/core"
	"CertLedger/internal/event"
	"CertLedger/internal/ledger"
	"CertLedger/internal/observability"
)

// Worker maintains the queryable projection tables from the applied
// event stream. The feed channel is non-blocking with drop on the core
// side; a worker that falls behind is healed by RebuildProjections,
// never by stalling the core.
type Worker struct {
	db        *sql.DB
	inputChan <-chan core.Output
	metrics   *observability.Metrics
	log       zerolog.Logger
}

func NewWorker(db *sql.DB, inputChan <-chan core.Output, metrics *observability.Metrics, log zerolog.Logger) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
		log:       log,
	}
}

// Run applies events until the context is cancelled or the channel
// closes. Failures are logged and skipped: projections are eventually
// consistent against the event log.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-w.inputChan:
			if !ok {
				return nil
			}
			if err := w.applyTx(ctx, output.Envelope); err != nil {
				w.log.Warn().Err(err).Uint64("event_id", output.Envelope.EventID).Msg("projection update failed")
			}
		}
	}
}

func (w *Worker) applyTx(ctx context.Context, env *event.Envelope) error {
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := applyEvent(ctx, tx, env); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_event_id, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_event_id = $1, updated_at = NOW()
	`, int64(env.EventID)); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if w.metrics != nil {
		w.metrics.ProjectionUpdateDur.WithLabelValues(env.Type.String()).Observe(time.Since(start).Seconds())
	}
	return nil
}

// applyEvent routes one envelope into its projection tables. Payload
// word layouts are fixed by the event package encoders.
func applyEvent(ctx context.Context, tx *sql.Tx, env *event.Envelope) error {
	p := env.Payload
	eid := int64(env.EventID)

	switch env.Type {
	case event.EventTypeTicked:
		if err := wantWords(p, 1); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.global_stats SET tick = $1, last_event_id = $2 WHERE stats_id = 1
		`, int64(p[0]), eid)
		return err

	case event.EventTypeAccountInstalled:
		if err := wantWords(p, 3); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.accounts (owner, idle_funds, points, last_event_id)
			VALUES ($1, 0, 0, $2)
			ON CONFLICT (owner) DO NOTHING
		`, ownerString(p), eid); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.global_stats SET account_count = $1, last_event_id = $2 WHERE stats_id = 1
		`, int64(p[2]), eid)
		return err

	case event.EventTypeDeposited:
		if err := wantWords(p, 4); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.accounts SET idle_funds = $2, last_event_id = $3 WHERE owner = $1
		`, ownerString(p), int64(p[3]), eid); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.global_stats
			SET total_funds = total_funds + $1, last_event_id = $2 WHERE stats_id = 1
		`, int64(p[2]), eid)
		return err

	case event.EventTypeWithdrawn:
		if err := wantWords(p, 7); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.accounts SET idle_funds = $2, last_event_id = $3 WHERE owner = $1
		`, ownerString(p), int64(p[3]), eid); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.global_stats
			SET total_funds = total_funds - $1, last_event_id = $2 WHERE stats_id = 1
		`, int64(p[2]), eid)
		return err

	case event.EventTypePointsWithdrawn:
		if err := wantWords(p, 9); err != nil {
			return err
		}
		if p[8] != 0 {
			// Mint path touches no account balance.
			return nil
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.accounts SET points = $2, last_event_id = $3 WHERE owner = $1
		`, ownerString(p), int64(p[4]), eid)
		return err

	case event.EventTypeProductCreated, event.EventTypeProductModified:
		if err := wantWords(p, 5); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.product_types
				(product_type_id, duration_ticks, rate_basis_points, min_amount, active, last_event_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (product_type_id) DO UPDATE SET
				duration_ticks = $2, rate_basis_points = $3, min_amount = $4, active = $5, last_event_id = $6
		`, int64(p[0]), int64(p[1]), int64(p[2]), int64(p[3]), p[4] != 0, eid)
		return err

	case event.EventTypeCertificatePurchased:
		if err := wantWords(p, 8); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.certificates
				(certificate_id, owner, product_type_id, principal, maturity_tick,
				 rate_basis_points, interest_claimed, status, last_event_id)
			VALUES ($1, $2, $3, $4, $5, $6, 0, 'active', $7)
			ON CONFLICT (certificate_id) DO NOTHING
		`, int64(p[2]), ownerString(p), int64(p[3]), int64(p[4]), int64(p[5]), int64(p[6]), eid); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.accounts
			SET idle_funds = idle_funds - $2, last_event_id = $3 WHERE owner = $1
		`, ownerString(p), int64(p[4]), eid); err != nil {
			return err
		}
		if p[7] != 0 {
			_, err := tx.ExecContext(ctx, `
				UPDATE projections.global_stats
				SET total_funds = total_funds - $1,
				    total_recharge = total_recharge + $1,
				    last_event_id = $2
				WHERE stats_id = 1
			`, int64(p[4]), eid)
			return err
		}
		return nil

	case event.EventTypeInterestClaimed:
		if err := wantWords(p, 5); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.certificates
			SET interest_claimed = $2, last_event_id = $3 WHERE certificate_id = $1
		`, int64(p[2]), int64(p[4]), eid); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.accounts
			SET idle_funds = idle_funds + $2, last_event_id = $3 WHERE owner = $1
		`, ownerString(p), int64(p[3]), eid); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.global_stats
			SET total_interest_paid = total_interest_paid + $1, last_event_id = $2 WHERE stats_id = 1
		`, int64(p[3]), eid)
		return err

	case event.EventTypePrincipalRedeemed:
		if err := wantWords(p, 4); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.certificates
			SET status = 'redeemed', last_event_id = $2 WHERE certificate_id = $1
		`, int64(p[2]), eid); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.accounts
			SET idle_funds = idle_funds + $2, last_event_id = $3 WHERE owner = $1
		`, ownerString(p), int64(p[3]), eid)
		return err

	case event.EventTypeAdminWithdrawn:
		if err := wantWords(p, 6); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.global_stats
			SET total_withdrawn = $1, last_event_id = $2 WHERE stats_id = 1
		`, int64(p[4]), eid)
		return err

	case event.EventTypeReserveRatioChanged:
		if err := wantWords(p, 2); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.global_stats
			SET reserve_ratio = $1, last_event_id = $2 WHERE stats_id = 1
		`, int64(p[1]), eid)
		return err

	default:
		// Unrecognized events are skipped, not failed: a newer writer
		// may be ahead of this worker's vocabulary.
		return nil
	}
}

func ownerString(p []uint64) string {
	return ledger.AccountID{p[0], p[1]}.String()
}

func wantWords(p []uint64, n int) error {
	if len(p) < n {
		return fmt.Errorf("payload: want %d words, got %d", n, len(p))
	}
	return nil
}

// RebuildProjections truncates every projection table and replays the
// full event log through the same per-event routine the live worker
// uses.
func RebuildProjections(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	resetStatements := []string{
		`TRUNCATE projections.accounts`,
		`TRUNCATE projections.certificates`,
		`TRUNCATE projections.product_types`,
		`UPDATE projections.global_stats SET
			tick = 0, account_count = 0, total_funds = 0, total_recharge = 0,
			total_withdrawn = 0, total_interest_paid = 0,
			reserve_ratio = $1, last_event_id = 0
		 WHERE stats_id = 1`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}
	for i, stmt := range resetStatements {
		var err error
		if i == 3 {
			_, err = db.ExecContext(ctx, stmt, int64(ledger.DefaultReserveRatio))
		} else {
			_, err = db.ExecContext(ctx, stmt)
		}
		if err != nil {
			return fmt.Errorf("projection reset: %w", err)
		}
	}

	const pageSize = 1000
	var after int64
	total := 0

	for {
		rows, err := db.QueryContext(ctx, `
			SELECT event_id, event_type, payload
			FROM event_log.events
			WHERE event_id > $1
			ORDER BY event_id ASC
			LIMIT $2
		`, after, pageSize)
		if err != nil {
			return fmt.Errorf("load events: %w", err)
		}

		type storedEvent struct {
			eventID   int64
			eventType string
			payload   []byte
		}
		var page []storedEvent
		for rows.Next() {
			var se storedEvent
			if err := rows.Scan(&se.eventID, &se.eventType, &se.payload); err != nil {
				rows.Close()
				return err
			}
			page = append(page, se)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, se := range page {
			env, err := envelopeFromRow(se.eventID, se.eventType, se.payload)
			if err != nil {
				tx.Rollback()
				return fmt.Errorf("event %d: %w", se.eventID, err)
			}
			if err := applyEvent(ctx, tx, env); err != nil {
				tx.Rollback()
				return fmt.Errorf("event %d: %w", se.eventID, err)
			}
		}
		last := page[len(page)-1].eventID
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.watermark (worker_id, last_event_id, updated_at)
			VALUES ('main', $1, NOW())
			ON CONFLICT (worker_id) DO UPDATE SET last_event_id = $1, updated_at = NOW()
		`, last); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		total += len(page)
		after = last
	}

	log.Info().Int("events", total).Msg("projection rebuild complete")
	return nil
}

func envelopeFromRow(eventID int64, eventType string, payload []byte) (*event.Envelope, error) {
	var strs []string
	if err := json.Unmarshal(payload, &strs); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	words := make([]uint64, len(strs))
	for i, s := range strs {
		w, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("payload word %d: %w", i, err)
		}
		words[i] = w
	}
	return &event.Envelope{
		EventID: uint64(eventID),
		Type:    event.ParseEventType(eventType),
		Payload: words,
	}, nil
}
