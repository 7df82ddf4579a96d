package certs

import (
	"fmt"

	"CertLedger/internal/catalog"
	"CertLedger/internal/errcode"
	"CertLedger/internal/ledger"
	"CertLedger/internal/math"
	"CertLedger/internal/store"
)

// Manager runs the certificate lifecycle operations against the word
// store. All validation happens before the first mutation, so a failed
// operation leaves the account, the global state, and storage untouched.
type Manager struct {
	store   store.WordStore
	catalog *catalog.Catalog
}

func NewManager(s store.WordStore, c *catalog.Catalog) *Manager {
	return &Manager{store: s, catalog: c}
}

// Get loads a certificate by (owner, id). A certificate stored under a
// different owner is indistinguishable from an absent one; ownership is
// part of the key.
func (m *Manager) Get(owner ledger.AccountID, certID uint64) (*Certificate, bool) {
	words, ok := m.store.Get(store.CertificateKey(owner[0], owner[1], certID))
	if !ok {
		return nil, false
	}
	cert, err := certificateFromWords(certID, owner, words)
	if err != nil {
		panic(fmt.Sprintf("corrupt certificate record %d: %v", certID, err))
	}
	return cert, true
}

func (m *Manager) save(c *Certificate) {
	m.store.Set(store.CertificateKey(c.Owner[0], c.Owner[1], c.ID), c.toWords())
}

// Purchase converts idle funds into a certificate. The product's current
// rate is locked into the record; purchases of the recharge product
// additionally reclassify the amount from user principal to external
// recharge funding in the global accounting.
func (m *Manager) Purchase(g *ledger.GlobalState, acct *ledger.Account, productTypeID, amount uint64) (*Certificate, error) {
	if amount < ledger.MinCertificateAmount || amount > ledger.MaxCertificateAmount {
		return nil, errcode.InvalidPrincipalAmount
	}

	product, ok := m.catalog.Get(productTypeID)
	if !ok {
		return nil, errcode.ProductTypeNotExist
	}
	if !product.Active {
		return nil, errcode.ProductTypeInactive
	}
	if amount < product.MinAmount {
		return nil, errcode.PrincipalAmountTooSmall
	}

	maturityTick, err := product.MaturityTick(g.Tick)
	if err != nil {
		return nil, err
	}

	// Recharge purchases relabel funds rather than leaving totals
	// unchanged: the amount moves out of TotalFunds and into
	// TotalRechargeAmount. Compute both new totals before mutating
	// anything so a failure here aborts cleanly.
	var newTotalFunds, newRecharge uint64
	isRecharge := productTypeID == catalog.RechargeProductID
	if isRecharge {
		newTotalFunds, err = math.Sub(g.TotalFunds, amount)
		if err != nil {
			return nil, err
		}
		newRecharge, err = math.Add(g.TotalRechargeAmount, amount)
		if err != nil {
			return nil, err
		}
	}

	if err := acct.SpendIdle(amount); err != nil {
		return nil, err
	}

	if isRecharge {
		g.TotalFunds = newTotalFunds
		g.TotalRechargeAmount = newRecharge
	}

	cert := &Certificate{
		ID:              g.AllocateCertificateID(),
		Owner:           acct.ID,
		ProductTypeID:   productTypeID,
		Principal:       amount,
		PurchaseTick:    g.Tick,
		MaturityTick:    maturityTick,
		RateBasisPoints: product.RateBasisPoints,
		InterestClaimed: 0,
		Status:          StatusActive,
	}
	m.save(cert)
	return cert, nil
}

// ClaimInterest pays out the interest accrued since the last claim,
// crediting the owner's idle funds and advancing the cumulative-claimed
// total. Status is untouched; claiming works before and after maturity.
func (m *Manager) ClaimInterest(g *ledger.GlobalState, acct *ledger.Account, certID uint64) (uint64, *Certificate, error) {
	cert, ok := m.Get(acct.ID, certID)
	if !ok {
		return 0, nil, errcode.CertificateNotOwned
	}

	available, err := cert.AvailableInterest(g.Tick)
	if err != nil {
		return 0, nil, err
	}
	if available == 0 {
		return 0, nil, errcode.InsufficientInterest
	}

	newClaimed, err := math.Add(cert.InterestClaimed, available)
	if err != nil {
		return 0, nil, err
	}
	newPaid, err := math.Add(g.TotalInterestPaid, available)
	if err != nil {
		return 0, nil, err
	}
	if err := acct.AddIdle(available); err != nil {
		return 0, nil, err
	}

	cert.InterestClaimed = newClaimed
	g.TotalInterestPaid = newPaid
	m.save(cert)
	return available, cert, nil
}

// RedeemPrincipal returns the original principal of a matured
// certificate to idle funds and marks the record Redeemed. The principal
// is immutable; redemption never scales it. Total funds are unchanged:
// the funds were never removed from the system, only relabeled as
// locked.
func (m *Manager) RedeemPrincipal(g *ledger.GlobalState, acct *ledger.Account, certID uint64) (uint64, *Certificate, error) {
	cert, ok := m.Get(acct.ID, certID)
	if !ok {
		return 0, nil, errcode.CertificateNotOwned
	}

	if cert.Status == StatusRedeemed {
		return 0, nil, errcode.CertificateAlreadyRedeemed
	}
	if cert.EffectiveStatus(g.Tick) != StatusMatured {
		return 0, nil, errcode.CertificateNotMatured
	}

	if err := acct.AddIdle(cert.Principal); err != nil {
		return 0, nil, err
	}

	cert.Status = StatusRedeemed
	m.save(cert)
	return cert.Principal, cert, nil
}

// ListByOwner returns the owner's certificates with ids below the
// allocation watermark, in id order.
func (m *Manager) ListByOwner(g *ledger.GlobalState, owner ledger.AccountID) []*Certificate {
	var out []*Certificate
	for id := uint64(ledger.FirstAllocatedID); id < g.NextCertificateID; id++ {
		if cert, ok := m.Get(owner, id); ok {
			out = append(out, cert)
		}
	}
	return out
}
