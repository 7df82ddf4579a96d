package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound marks lookups that matched no row.
var ErrNotFound = errors.New("not found")

// Service provides read-only access to the projection tables. Every
// response carries as_of_event_id so callers can reason about
// staleness relative to the event log.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetAccount returns one account's projected balances.
func (s *Service) GetAccount(ctx context.Context, owner string) (*AccountResponse, error) {
	asOf, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	resp := &AccountResponse{Owner: owner, AsOfEvent: asOf}
	err = s.db.QueryRowContext(ctx, `
		SELECT idle_funds, points FROM projections.accounts WHERE owner = $1
	`, owner).Scan(&resp.IdleFunds, &resp.Points)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ListCertificates returns an owner's certificates in id order, with
// cursor pagination.
func (s *Service) ListCertificates(ctx context.Context, owner string, limit int, afterID int64) ([]CertificateResponse, error) {
	asOf, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT certificate_id, product_type_id, principal, maturity_tick,
		       rate_basis_points, interest_claimed, status
		FROM projections.certificates
		WHERE owner = $1 AND certificate_id > $2
		ORDER BY certificate_id ASC
		LIMIT $3
	`, owner, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var certs []CertificateResponse
	for rows.Next() {
		c := CertificateResponse{Owner: owner, AsOfEvent: asOf}
		if err := rows.Scan(
			&c.CertificateID, &c.ProductTypeID, &c.Principal, &c.MaturityTick,
			&c.RateBasisPoints, &c.InterestClaimed, &c.Status,
		); err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}
	return certs, rows.Err()
}

// GetCertificate returns one certificate by id.
func (s *Service) GetCertificate(ctx context.Context, certID int64) (*CertificateResponse, error) {
	asOf, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	c := &CertificateResponse{CertificateID: certID, AsOfEvent: asOf}
	err = s.db.QueryRowContext(ctx, `
		SELECT owner, product_type_id, principal, maturity_tick,
		       rate_basis_points, interest_claimed, status
		FROM projections.certificates
		WHERE certificate_id = $1
	`, certID).Scan(
		&c.Owner, &c.ProductTypeID, &c.Principal, &c.MaturityTick,
		&c.RateBasisPoints, &c.InterestClaimed, &c.Status,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListProductTypes returns the catalog in id order.
func (s *Service) ListProductTypes(ctx context.Context) ([]ProductTypeResponse, error) {
	asOf, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_type_id, duration_ticks, rate_basis_points, min_amount, active
		FROM projections.product_types
		ORDER BY product_type_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []ProductTypeResponse
	for rows.Next() {
		p := ProductTypeResponse{AsOfEvent: asOf}
		if err := rows.Scan(
			&p.ProductTypeID, &p.DurationTicks, &p.RateBasisPoints, &p.MinAmount, &p.Active,
		); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetStats returns the projected global accounting row.
func (s *Service) GetStats(ctx context.Context) (*StatsResponse, error) {
	asOf, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	resp := &StatsResponse{AsOfEvent: asOf}
	err = s.db.QueryRowContext(ctx, `
		SELECT tick, account_count, total_funds, total_recharge,
		       total_withdrawn, total_interest_paid, reserve_ratio
		FROM projections.global_stats
		WHERE stats_id = 1
	`).Scan(
		&resp.Tick, &resp.AccountCount, &resp.TotalFunds, &resp.TotalRecharge,
		&resp.TotalWithdrawn, &resp.TotalInterestPaid, &resp.ReserveRatio,
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// VerifyIntegrity walks the event log in order and reports every event
// whose prev_hash does not match its predecessor's state_hash.
func (s *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, checked, broken FROM (
			SELECT event_id,
			       LAG(state_hash) OVER (ORDER BY event_id) IS NOT NULL AS checked,
			       prev_hash != LAG(state_hash) OVER (ORDER BY event_id) AS broken
			FROM event_log.events
		) chain
		WHERE checked AND broken
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var eventID int64
		var checked, broken bool
		if err := rows.Scan(&eventID, &checked, &broken); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, eventID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM event_log.events
	`).Scan(&report.EventsChecked); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0
	return report, nil
}

func (s *Service) getWatermark(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT last_event_id FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}
