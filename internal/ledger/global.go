package ledger

import (
	"fmt"

	"CertLedger/internal/errcode"
	"CertLedger/internal/math"
	"CertLedger/internal/store"
)

// GlobalState is the process-wide ledger singleton. Exactly one instance
// exists per running core; operations borrow it one at a time under the
// serial processing model, so no field needs synchronization.
type GlobalState struct {
	// Tick is the monotonic time base, advanced only by the tick
	// operation.
	Tick uint64

	// AccountCount tracks installed accounts.
	AccountCount uint64

	// TotalFunds is the aggregate of user-deposited funds currently in
	// the system (idle or locked in certificates).
	TotalFunds uint64

	// ID allocation counters, starting at FirstAllocatedID.
	NextProductID     uint64
	NextCertificateID uint64

	// ReserveRatio (basis points) withholds a fraction of aggregate
	// funds from privileged withdrawal. Capped at MaxReserveRatio.
	ReserveRatio uint64

	// Cumulative counters. These only grow.
	TotalWithdrawn      uint64 // privileged withdrawals to the external destination
	TotalInterestPaid   uint64 // interest credited to accounts
	TotalRechargeAmount uint64 // inflow routed through the recharge product

	// TxCounter counts applied operations across the life of the ledger
	// and forms the low half of event ids. TxSize counts operations
	// since the last settlement flush and resets when one is signaled.
	TxCounter uint64
	TxSize    uint64
}

// NewGlobalState returns the genesis state.
func NewGlobalState() *GlobalState {
	return &GlobalState{
		NextProductID:     FirstAllocatedID,
		NextCertificateID: FirstAllocatedID,
		ReserveRatio:      DefaultReserveRatio,
	}
}

// AllocateProductID returns the next product id and advances the counter.
func (g *GlobalState) AllocateProductID() uint64 {
	id := g.NextProductID
	g.NextProductID++
	return id
}

// AllocateCertificateID returns the next certificate id and advances the
// counter.
func (g *GlobalState) AllocateCertificateID() uint64 {
	id := g.NextCertificateID
	g.NextCertificateID++
	return id
}

// EventID derives the monotonically increasing event id for the current
// operation. TxCounter is cumulative over the log's lifetime and must
// stay below 1<<32, or the id bleeds into the tick bits.
func (g *GlobalState) EventID() uint64 {
	return g.Tick<<32 + g.TxCounter
}

// SetReserveRatio updates the reserve ratio, rejecting ratios above the
// cap.
func (g *GlobalState) SetReserveRatio(ratio uint64) error {
	if ratio > MaxReserveRatio {
		return errcode.InvalidReserveRatio
	}
	g.ReserveRatio = ratio
	return nil
}

// AvailableForAdminWithdrawal computes the single authorization gate for
// privileged extraction:
//
//	base             = total_funds + total_recharge
//	withdrawable     = max(base - total_withdrawn, 0)
//	available        = floor(withdrawable * (divisor - reserve_ratio) / divisor)
//
// The subtraction of total_withdrawn floors at zero by policy; it is
// not an underflow. The reserve multiplier subtraction cannot underflow
// because the ratio is invariant-capped at half the divisor.
func (g *GlobalState) AvailableForAdminWithdrawal() (uint64, error) {
	base, err := math.Add(g.TotalFunds, g.TotalRechargeAmount)
	if err != nil {
		return 0, err
	}

	var withdrawable uint64
	if base >= g.TotalWithdrawn {
		withdrawable = base - g.TotalWithdrawn
	}

	multiplier, err := math.Sub(BasisPointsDivisor, g.ReserveRatio)
	if err != nil {
		return 0, err
	}

	scaled, err := math.Mul(withdrawable, multiplier)
	if err != nil {
		return 0, err
	}
	return math.Div(scaled, BasisPointsDivisor)
}

const globalWordCount = 11

// ToWords flattens the singleton for the word store.
func (g *GlobalState) ToWords() []uint64 {
	return []uint64{
		g.Tick,
		g.AccountCount,
		g.TotalFunds,
		g.NextProductID,
		g.NextCertificateID,
		g.ReserveRatio,
		g.TotalWithdrawn,
		g.TotalInterestPaid,
		g.TotalRechargeAmount,
		g.TxCounter,
		g.TxSize,
	}
}

// GlobalFromWords rebuilds the singleton from stored words.
func GlobalFromWords(words []uint64) (*GlobalState, error) {
	if len(words) != globalWordCount {
		return nil, fmt.Errorf("global state: want %d words, got %d", globalWordCount, len(words))
	}
	return &GlobalState{
		Tick:                words[0],
		AccountCount:        words[1],
		TotalFunds:          words[2],
		NextProductID:       words[3],
		NextCertificateID:   words[4],
		ReserveRatio:        words[5],
		TotalWithdrawn:      words[6],
		TotalInterestPaid:   words[7],
		TotalRechargeAmount: words[8],
		TxCounter:           words[9],
		TxSize:              words[10],
	}, nil
}

// LoadGlobal reads the singleton from the store, falling back to genesis
// defaults on a cold start.
func LoadGlobal(s store.WordStore) (*GlobalState, error) {
	words, ok := s.Get(store.GlobalKey())
	if !ok {
		return NewGlobalState(), nil
	}
	return GlobalFromWords(words)
}

// SaveGlobal flushes the singleton to the store.
func SaveGlobal(s store.WordStore, g *GlobalState) {
	s.Set(store.GlobalKey(), g.ToWords())
}
