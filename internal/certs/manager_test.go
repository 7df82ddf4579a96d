package certs

import (
	"errors"
	"testing"

	"CertLedger/internal/catalog"
	"CertLedger/internal/errcode"
	"CertLedger/internal/ledger"
	"CertLedger/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *catalog.Catalog, *ledger.GlobalState) {
	t.Helper()
	s := store.NewMemStore()
	c := catalog.NewCatalog(s)
	return NewManager(s, c), c, ledger.NewGlobalState()
}

func newFundedAccount(balance uint64) *ledger.Account {
	return &ledger.Account{ID: ledger.AccountID{0xaa, 0xbb}, IdleFunds: balance}
}

func TestPurchase(t *testing.T) {
	m, c, g := newTestManager(t)
	pid, err := c.Create(g, 30*ledger.TicksPerDay, 1200, 1000, true)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	g.Tick = 7
	acct := newFundedAccount(500000)

	cert, err := m.Purchase(g, acct, pid, 100000)
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if cert.ID != 1 {
		t.Errorf("first certificate id = %d, want 1", cert.ID)
	}
	if cert.Principal != 100000 || cert.PurchaseTick != 7 || cert.RateBasisPoints != 1200 {
		t.Errorf("certificate = %+v", cert)
	}
	if cert.MaturityTick != 7+30*ledger.TicksPerDay {
		t.Errorf("MaturityTick = %d", cert.MaturityTick)
	}
	if acct.IdleFunds != 400000 {
		t.Errorf("idle after purchase = %d, want 400000", acct.IdleFunds)
	}

	// The rate is locked at purchase; a later catalog change must not
	// leak into the stored record.
	if err := c.Modify(pid, 30*ledger.TicksPerDay, 9999, 1000, true); err != nil {
		t.Fatalf("Modify: %v", err)
	}
	got, ok := m.Get(acct.ID, cert.ID)
	if !ok {
		t.Fatal("Get after purchase")
	}
	if got.RateBasisPoints != 1200 {
		t.Errorf("stored rate = %d, want locked 1200", got.RateBasisPoints)
	}
}

func TestPurchaseValidation(t *testing.T) {
	m, c, g := newTestManager(t)
	pid, _ := c.Create(g, ledger.TicksPerDay, 1000, 5000, true)
	inactive, _ := c.Create(g, ledger.TicksPerDay, 1000, 100, false)

	acct := newFundedAccount(1000)

	cases := []struct {
		name    string
		product uint64
		amount  uint64
		want    errcode.Code
	}{
		{"below global minimum", pid, ledger.MinCertificateAmount - 1, errcode.InvalidPrincipalAmount},
		{"above global maximum", pid, ledger.MaxCertificateAmount + 1, errcode.InvalidPrincipalAmount},
		{"unknown product", 99, 100, errcode.ProductTypeNotExist},
		{"inactive product", inactive, 100, errcode.ProductTypeInactive},
		{"below product minimum", pid, 4999, errcode.PrincipalAmountTooSmall},
		{"insufficient balance", pid, 5000, errcode.InsufficientBalance},
	}

	for _, tc := range cases {
		_, err := m.Purchase(g, acct, tc.product, tc.amount)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}

	// Failed purchases leave the account and the id counter untouched.
	if acct.IdleFunds != 1000 {
		t.Errorf("idle after failed purchases = %d, want 1000", acct.IdleFunds)
	}
	if g.NextCertificateID != 1 {
		t.Errorf("NextCertificateID = %d, want 1", g.NextCertificateID)
	}
}

func TestPurchaseRecharge(t *testing.T) {
	m, _, g := newTestManager(t)
	g.TotalFunds = 50000
	acct := newFundedAccount(50000)

	cert, err := m.Purchase(g, acct, catalog.RechargeProductID, 20000)
	if err != nil {
		t.Fatalf("recharge purchase: %v", err)
	}
	if cert.RateBasisPoints != 0 {
		t.Errorf("recharge rate = %d, want 0", cert.RateBasisPoints)
	}
	if g.TotalFunds != 30000 {
		t.Errorf("TotalFunds = %d, want 30000", g.TotalFunds)
	}
	if g.TotalRechargeAmount != 20000 {
		t.Errorf("TotalRechargeAmount = %d, want 20000", g.TotalRechargeAmount)
	}
	if acct.IdleFunds != 30000 {
		t.Errorf("idle = %d, want 30000", acct.IdleFunds)
	}
}

func TestClaimInterest(t *testing.T) {
	m, c, g := newTestManager(t)
	pid, _ := c.Create(g, 30*ledger.TicksPerDay, 1200, 10, true)

	acct := newFundedAccount(100000)
	cert, err := m.Purchase(g, acct, pid, 100000)
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	// Nothing accrued yet.
	if _, _, err := m.ClaimInterest(g, acct, cert.ID); !errors.Is(err, errcode.InsufficientInterest) {
		t.Errorf("claim at purchase tick err = %v, want InsufficientInterest", err)
	}

	// Half way: floor(12000 * 1296000 / 31536000) = 493.
	g.Tick = 15 * ledger.TicksPerDay
	paid, updated, err := m.ClaimInterest(g, acct, cert.ID)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if paid != 493 {
		t.Errorf("first claim = %d, want 493", paid)
	}
	if updated.InterestClaimed != 493 {
		t.Errorf("InterestClaimed = %d", updated.InterestClaimed)
	}
	if acct.IdleFunds != 493 {
		t.Errorf("idle after claim = %d", acct.IdleFunds)
	}
	if g.TotalInterestPaid != 493 {
		t.Errorf("TotalInterestPaid = %d", g.TotalInterestPaid)
	}

	// Claiming again at the same tick yields nothing new.
	if _, _, err := m.ClaimInterest(g, acct, cert.ID); !errors.Is(err, errcode.InsufficientInterest) {
		t.Errorf("repeat claim err = %v, want InsufficientInterest", err)
	}

	// At maturity the two claims add up to the full 30-day amount.
	g.Tick = 30 * ledger.TicksPerDay
	paid2, updated, err := m.ClaimInterest(g, acct, cert.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if paid+paid2 != 986 {
		t.Errorf("total paid = %d, want 986", paid+paid2)
	}
	if updated.InterestClaimed != 986 {
		t.Errorf("cumulative claimed = %d, want 986", updated.InterestClaimed)
	}

	// Claiming someone else's certificate reads as not owned.
	stranger := &ledger.Account{ID: ledger.AccountID{1, 2}}
	if _, _, err := m.ClaimInterest(g, stranger, cert.ID); !errors.Is(err, errcode.CertificateNotOwned) {
		t.Errorf("foreign claim err = %v, want CertificateNotOwned", err)
	}
}

func TestRedeemPrincipal(t *testing.T) {
	m, c, g := newTestManager(t)
	pid, _ := c.Create(g, 30*ledger.TicksPerDay, 1200, 10, true)

	acct := newFundedAccount(100000)
	cert, err := m.Purchase(g, acct, pid, 100000)
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	// Not matured yet.
	g.Tick = 30*ledger.TicksPerDay - 1
	if _, _, err := m.RedeemPrincipal(g, acct, cert.ID); !errors.Is(err, errcode.CertificateNotMatured) {
		t.Errorf("early redeem err = %v, want CertificateNotMatured", err)
	}

	// Exactly at maturity returns exactly the principal, no scaling.
	g.Tick = 30 * ledger.TicksPerDay
	principal, updated, err := m.RedeemPrincipal(g, acct, cert.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if principal != 100000 {
		t.Errorf("redeemed principal = %d, want 100000", principal)
	}
	if updated.Status != StatusRedeemed {
		t.Errorf("status after redeem = %v", updated.Status)
	}
	if acct.IdleFunds != 100000 {
		t.Errorf("idle after redeem = %d, want 100000", acct.IdleFunds)
	}

	// Redemption is terminal.
	if _, _, err := m.RedeemPrincipal(g, acct, cert.ID); !errors.Is(err, errcode.CertificateAlreadyRedeemed) {
		t.Errorf("double redeem err = %v, want CertificateAlreadyRedeemed", err)
	}

	if _, _, err := m.RedeemPrincipal(g, acct, 99); !errors.Is(err, errcode.CertificateNotOwned) {
		t.Errorf("unknown certificate err = %v, want CertificateNotOwned", err)
	}
}

func TestClaimAfterRedeem(t *testing.T) {
	m, c, g := newTestManager(t)
	pid, _ := c.Create(g, 30*ledger.TicksPerDay, 1200, 10, true)

	acct := newFundedAccount(100000)
	cert, _ := m.Purchase(g, acct, pid, 100000)

	g.Tick = 30 * ledger.TicksPerDay
	if _, _, err := m.RedeemPrincipal(g, acct, cert.ID); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	// Interest earned before redemption stays claimable afterwards.
	paid, _, err := m.ClaimInterest(g, acct, cert.ID)
	if err != nil {
		t.Fatalf("claim after redeem: %v", err)
	}
	if paid != 986 {
		t.Errorf("claim after redeem = %d, want 986", paid)
	}
}

func TestListByOwner(t *testing.T) {
	m, c, g := newTestManager(t)
	pid, _ := c.Create(g, ledger.TicksPerDay, 100, 10, true)

	acct := newFundedAccount(1000)
	other := &ledger.Account{ID: ledger.AccountID{9, 9}, IdleFunds: 1000}

	m.Purchase(g, acct, pid, 100)
	m.Purchase(g, other, pid, 100)
	m.Purchase(g, acct, pid, 100)

	mine := m.ListByOwner(g, acct.ID)
	if len(mine) != 2 {
		t.Fatalf("ListByOwner len = %d, want 2", len(mine))
	}
	if mine[0].ID != 1 || mine[1].ID != 3 {
		t.Errorf("ListByOwner ids = %d, %d, want 1, 3", mine[0].ID, mine[1].ID)
	}

	if got := m.ListByOwner(g, ledger.AccountID{5, 5}); len(got) != 0 {
		t.Errorf("unknown owner list len = %d, want 0", len(got))
	}
}
