package event

import "CertLedger/internal/ledger"

// AccountInstalled records a new account registration.
type AccountInstalled struct {
	Owner        ledger.AccountID
	AccountCount uint64
}

func (e *AccountInstalled) Type() EventType { return EventTypeAccountInstalled }

func (e *AccountInstalled) Words() []uint64 {
	return []uint64{e.Owner[0], e.Owner[1], e.AccountCount}
}

// Deposited records a privileged credit of idle funds to an account.
type Deposited struct {
	Target     ledger.AccountID
	Amount     uint64
	NewBalance uint64
}

func (e *Deposited) Type() EventType { return EventTypeDeposited }

func (e *Deposited) Words() []uint64 {
	return []uint64{e.Target[0], e.Target[1], e.Amount, e.NewBalance}
}

// Withdrawn records a user withdrawal of idle funds. The destination
// address travels in three words: four bytes, then two eight-byte
// words.
type Withdrawn struct {
	Owner       ledger.AccountID
	Amount      uint64
	NewBalance  uint64
	Destination [3]uint64
}

func (e *Withdrawn) Type() EventType { return EventTypeWithdrawn }

func (e *Withdrawn) Words() []uint64 {
	return []uint64{e.Owner[0], e.Owner[1], e.Amount, e.NewBalance, e.Destination[0], e.Destination[1], e.Destination[2]}
}

// PointsWithdrawn records a points withdrawal, or the admin mint path
// when Minted is set.
type PointsWithdrawn struct {
	Owner       ledger.AccountID
	Amount      uint64
	PointsBurnt uint64
	NewBalance  uint64
	Destination [3]uint64
	Minted      bool
}

func (e *PointsWithdrawn) Type() EventType { return EventTypePointsWithdrawn }

func (e *PointsWithdrawn) Words() []uint64 {
	minted := uint64(0)
	if e.Minted {
		minted = 1
	}
	return []uint64{e.Owner[0], e.Owner[1], e.Amount, e.PointsBurnt, e.NewBalance, e.Destination[0], e.Destination[1], e.Destination[2], minted}
}
