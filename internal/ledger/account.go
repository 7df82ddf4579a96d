package ledger

import (
	"fmt"

	"CertLedger/internal/errcode"
	"CertLedger/internal/math"
	"CertLedger/internal/store"
)

// AccountID is the two-word account identity derived from a four-word
// public key. It keys account and certificate records in storage.
type AccountID [2]uint64

// DeriveAccountID compresses a public key into an AccountID. The middle
// two key words are used, matching the identity mapping of the account
// subsystem that produces inbound operations.
func DeriveAccountID(pkey [4]uint64) AccountID {
	return AccountID{pkey[1], pkey[2]}
}

// String returns a stable hex form for logs and projection rows.
func (id AccountID) String() string {
	return fmt.Sprintf("%016x%016x", id[0], id[1])
}

// Account is the per-owner ledger record: spendable idle funds, the
// separate non-interest-bearing points balance, and the replay nonce.
type Account struct {
	ID        AccountID
	IdleFunds uint64
	Points    uint64
	Nonce     uint64
}

// AddIdle credits idle funds, failing on overflow.
func (a *Account) AddIdle(amount uint64) error {
	next, err := math.Add(a.IdleFunds, amount)
	if err != nil {
		return err
	}
	a.IdleFunds = next
	return nil
}

// SpendIdle debits idle funds. An insufficient balance is reported as
// InsufficientBalance, not as an arithmetic underflow.
func (a *Account) SpendIdle(amount uint64) error {
	if a.IdleFunds < amount {
		return errcode.InsufficientBalance
	}
	a.IdleFunds -= amount
	return nil
}

// AddPoints credits the points balance, failing on overflow.
func (a *Account) AddPoints(amount uint64) error {
	next, err := math.Add(a.Points, amount)
	if err != nil {
		return err
	}
	a.Points = next
	return nil
}

// SpendPoints debits the points balance.
func (a *Account) SpendPoints(amount uint64) error {
	if a.Points < amount {
		return errcode.InsufficientPoints
	}
	a.Points -= amount
	return nil
}

func (a *Account) toWords() []uint64 {
	return []uint64{a.IdleFunds, a.Points, a.Nonce}
}

func accountFromWords(id AccountID, words []uint64) (*Account, error) {
	if len(words) != 3 {
		return nil, fmt.Errorf("account record: want 3 words, got %d", len(words))
	}
	return &Account{
		ID:        id,
		IdleFunds: words[0],
		Points:    words[1],
		Nonce:     words[2],
	}, nil
}

// Accounts loads and saves account records through the word store.
type Accounts struct {
	store store.WordStore
}

func NewAccounts(s store.WordStore) *Accounts {
	return &Accounts{store: s}
}

// Load returns the account for id, or (nil, false) if it was never
// installed.
func (as *Accounts) Load(id AccountID) (*Account, bool) {
	words, ok := as.store.Get(store.AccountKey(id[0], id[1]))
	if !ok {
		return nil, false
	}
	acct, err := accountFromWords(id, words)
	if err != nil {
		// A malformed record means the store image is corrupt; this is
		// not user input and cannot be handled by the caller.
		panic(fmt.Sprintf("corrupt account record %s: %v", id, err))
	}
	return acct, true
}

// Create installs a fresh account with zero balances.
func (as *Accounts) Create(id AccountID) (*Account, error) {
	if _, ok := as.store.Get(store.AccountKey(id[0], id[1])); ok {
		return nil, errcode.AccountExists
	}
	acct := &Account{ID: id}
	as.Save(acct)
	return acct, nil
}

// Save persists the record.
func (as *Accounts) Save(a *Account) {
	as.store.Set(store.AccountKey(a.ID[0], a.ID[1]), a.toWords())
}
