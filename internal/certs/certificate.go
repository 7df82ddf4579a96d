// Package certs implements the certificate entity, its lifecycle state
// machine, and the simple-interest accrual algorithm.
package certs

import (
	"fmt"

	"CertLedger/internal/ledger"
	"CertLedger/internal/math"
)

// Status is the persisted lifecycle state. Transitions are monotone:
// Active -> Matured -> Redeemed, never backward. Matured is primarily a
// computed predicate (see EffectiveStatus); the stored field only
// catches up when an operation naturally rewrites the record.
type Status uint64

const (
	StatusActive Status = iota
	StatusMatured
	StatusRedeemed
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusMatured:
		return "Matured"
	case StatusRedeemed:
		return "Redeemed"
	default:
		return fmt.Sprintf("Status(%d)", uint64(s))
	}
}

// Certificate is a purchase record. The rate is copied from the product
// at purchase time and never re-read, so later catalog changes cannot
// affect existing holders. InterestClaimed accumulates across claims;
// the cumulative design loses no precision on repeated small claims.
type Certificate struct {
	ID              uint64
	Owner           ledger.AccountID
	ProductTypeID   uint64
	Principal       uint64
	PurchaseTick    uint64
	MaturityTick    uint64
	RateBasisPoints uint64
	InterestClaimed uint64
	Status          Status
}

// EffectiveStatus reports the lifecycle state at nowTick. A certificate
// past maturity reads as Matured even while the stored field still says
// Active; Redeemed is terminal and never recomputed.
func (c *Certificate) EffectiveStatus(nowTick uint64) Status {
	if c.Status == StatusRedeemed {
		return StatusRedeemed
	}
	if nowTick >= c.MaturityTick {
		return StatusMatured
	}
	return StatusActive
}

// TotalInterest computes total simple interest earned from purchase to
// atTick:
//
//	floor( floor(principal * rate / divisor) * elapsed_seconds / seconds_per_year )
//
// The rate is applied to the principal BEFORE scaling by elapsed time.
// Reversing the order (dividing by seconds-per-year first) truncates the
// per-second rate to zero for realistic parameters and destroys all
// interest; the ordering here is correctness-critical, not style.
func (c *Certificate) TotalInterest(atTick uint64) (uint64, error) {
	if atTick <= c.PurchaseTick {
		return 0, nil
	}

	elapsedTicks, err := math.Sub(atTick, c.PurchaseTick)
	if err != nil {
		return 0, err
	}
	elapsedSeconds, err := math.Mul(elapsedTicks, ledger.SecondsPerTick)
	if err != nil {
		return 0, err
	}

	annual, err := math.Mul(c.Principal, c.RateBasisPoints)
	if err != nil {
		return 0, err
	}
	annual, err = math.Div(annual, ledger.BasisPointsDivisor)
	if err != nil {
		return 0, err
	}

	scaled, err := math.Mul(annual, elapsedSeconds)
	if err != nil {
		return 0, err
	}
	return math.Div(scaled, ledger.SecondsPerYear)
}

// AvailableInterest is total interest at atTick minus what has already
// been claimed, floored at zero.
func (c *Certificate) AvailableInterest(atTick uint64) (uint64, error) {
	total, err := c.TotalInterest(atTick)
	if err != nil {
		return 0, err
	}
	if total < c.InterestClaimed {
		return 0, nil
	}
	return total - c.InterestClaimed, nil
}

const certificateWordCount = 7

func (c *Certificate) toWords() []uint64 {
	return []uint64{
		c.ProductTypeID,
		c.Principal,
		c.PurchaseTick,
		c.MaturityTick,
		c.RateBasisPoints,
		c.InterestClaimed,
		uint64(c.Status),
	}
}

func certificateFromWords(id uint64, owner ledger.AccountID, words []uint64) (*Certificate, error) {
	if len(words) != certificateWordCount {
		return nil, fmt.Errorf("certificate record: want %d words, got %d", certificateWordCount, len(words))
	}
	return &Certificate{
		ID:              id,
		Owner:           owner,
		ProductTypeID:   words[0],
		Principal:       words[1],
		PurchaseTick:    words[2],
		MaturityTick:    words[3],
		RateBasisPoints: words[4],
		InterestClaimed: words[5],
		Status:          Status(words[6]),
	}, nil
}
