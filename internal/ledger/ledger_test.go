package ledger

import (
	"errors"
	"testing"

	"CertLedger/internal/errcode"
	"CertLedger/internal/store"
)

// --- Account balances ---

func TestAccountIdleFunds(t *testing.T) {
	acct := &Account{ID: AccountID{1, 2}}

	if err := acct.AddIdle(1000); err != nil {
		t.Fatalf("AddIdle: %v", err)
	}
	if err := acct.SpendIdle(400); err != nil {
		t.Fatalf("SpendIdle: %v", err)
	}
	if acct.IdleFunds != 600 {
		t.Errorf("IdleFunds = %d, want 600", acct.IdleFunds)
	}

	if err := acct.SpendIdle(601); !errors.Is(err, errcode.InsufficientBalance) {
		t.Errorf("overspend err = %v, want InsufficientBalance", err)
	}
	if acct.IdleFunds != 600 {
		t.Errorf("failed spend mutated balance: %d", acct.IdleFunds)
	}

	acct.IdleFunds = ^uint64(0)
	if err := acct.AddIdle(1); !errors.Is(err, errcode.Overflow) {
		t.Errorf("AddIdle overflow err = %v", err)
	}
}

func TestAccountPoints(t *testing.T) {
	acct := &Account{ID: AccountID{1, 2}}

	if err := acct.AddPoints(PointsDivisor * 3); err != nil {
		t.Fatalf("AddPoints: %v", err)
	}
	if err := acct.SpendPoints(PointsDivisor); err != nil {
		t.Fatalf("SpendPoints: %v", err)
	}
	if acct.Points != PointsDivisor*2 {
		t.Errorf("Points = %d, want %d", acct.Points, PointsDivisor*2)
	}

	if err := acct.SpendPoints(PointsDivisor * 3); !errors.Is(err, errcode.InsufficientPoints) {
		t.Errorf("overspend err = %v, want InsufficientPoints", err)
	}
}

func TestAccountsStore(t *testing.T) {
	s := store.NewMemStore()
	accounts := NewAccounts(s)

	id := AccountID{77, 88}

	if _, ok := accounts.Load(id); ok {
		t.Fatal("Load before Create should report absent")
	}

	acct, err := accounts.Create(id)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if acct.IdleFunds != 0 || acct.Points != 0 || acct.Nonce != 0 {
		t.Errorf("new account not zeroed: %+v", acct)
	}

	if _, err := accounts.Create(id); !errors.Is(err, errcode.AccountExists) {
		t.Errorf("duplicate Create err = %v, want AccountExists", err)
	}

	acct.IdleFunds = 500
	acct.Nonce = 3
	accounts.Save(acct)

	loaded, ok := accounts.Load(id)
	if !ok {
		t.Fatal("Load after Save should report present")
	}
	if loaded.IdleFunds != 500 || loaded.Nonce != 3 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestDeriveAccountID(t *testing.T) {
	pkey := [4]uint64{10, 20, 30, 40}
	id := DeriveAccountID(pkey)
	if id != (AccountID{20, 30}) {
		t.Errorf("DeriveAccountID = %v", id)
	}
}

// --- Global state ---

func TestGlobalDefaults(t *testing.T) {
	g := NewGlobalState()
	if g.NextProductID != 1 || g.NextCertificateID != 1 {
		t.Errorf("counters = %d, %d, want 1, 1", g.NextProductID, g.NextCertificateID)
	}
	if g.ReserveRatio != DefaultReserveRatio {
		t.Errorf("ReserveRatio = %d, want %d", g.ReserveRatio, DefaultReserveRatio)
	}
}

func TestAllocateIDs(t *testing.T) {
	g := NewGlobalState()
	if got := g.AllocateProductID(); got != 1 {
		t.Errorf("first product id = %d, want 1", got)
	}
	if got := g.AllocateProductID(); got != 2 {
		t.Errorf("second product id = %d, want 2", got)
	}
	if got := g.AllocateCertificateID(); got != 1 {
		t.Errorf("first certificate id = %d, want 1", got)
	}
}

func TestEventID(t *testing.T) {
	g := NewGlobalState()
	g.Tick = 3
	g.TxCounter = 7
	if got := g.EventID(); got != (3<<32)+7 {
		t.Errorf("EventID = %d, want %d", got, (uint64(3)<<32)+7)
	}
}

func TestSetReserveRatio(t *testing.T) {
	g := NewGlobalState()

	if err := g.SetReserveRatio(MaxReserveRatio); err != nil {
		t.Errorf("SetReserveRatio(max): %v", err)
	}
	if err := g.SetReserveRatio(MaxReserveRatio + 1); !errors.Is(err, errcode.InvalidReserveRatio) {
		t.Errorf("SetReserveRatio(max+1) err = %v", err)
	}
	if g.ReserveRatio != MaxReserveRatio {
		t.Errorf("failed set mutated ratio: %d", g.ReserveRatio)
	}
}

func TestAvailableForAdminWithdrawal(t *testing.T) {
	cases := []struct {
		name      string
		funds     uint64
		recharge  uint64
		withdrawn uint64
		ratio     uint64
		want      uint64
	}{
		{"zero state", 0, 0, 0, DefaultReserveRatio, 0},
		{"default ratio keeps 10%", 10000, 0, 0, 1000, 9000},
		{"recharge counts toward base", 10000, 5000, 0, 1000, 13500},
		{"withdrawn reduces base", 10000, 0, 4000, 1000, 5400},
		{"over-withdrawn floors at zero", 1000, 0, 5000, 1000, 0},
		{"max ratio keeps half", 10000, 0, 0, MaxReserveRatio, 5000},
		{"zero ratio releases all", 10000, 0, 0, 0, 10000},
		{"floor division", 99, 0, 0, 1000, 89}, // 99*9000/10000 = 89.1
	}

	for _, c := range cases {
		g := NewGlobalState()
		g.TotalFunds = c.funds
		g.TotalRechargeAmount = c.recharge
		g.TotalWithdrawn = c.withdrawn
		g.ReserveRatio = c.ratio

		got, err := g.AvailableForAdminWithdrawal()
		if err != nil {
			t.Errorf("%s: unexpected error %v", c.name, err)
			continue
		}
		if got != c.want {
			t.Errorf("%s: got %d, want %d", c.name, got, c.want)
		}
	}
}

func TestAvailableMonotonicity(t *testing.T) {
	// Monotone non-increasing in reserve ratio.
	var prev uint64 = ^uint64(0)
	for ratio := uint64(0); ratio <= MaxReserveRatio; ratio += 500 {
		g := NewGlobalState()
		g.TotalFunds = 123456
		g.ReserveRatio = ratio
		got, err := g.AvailableForAdminWithdrawal()
		if err != nil {
			t.Fatalf("ratio=%d: %v", ratio, err)
		}
		if got > prev {
			t.Errorf("available increased with ratio: %d at ratio %d (prev %d)", got, ratio, prev)
		}
		prev = got
	}

	// Monotone non-decreasing in total funds, and never exceeds
	// base minus cumulative withdrawals.
	prev = 0
	for funds := uint64(0); funds <= 100000; funds += 12345 {
		g := NewGlobalState()
		g.TotalFunds = funds
		g.TotalRechargeAmount = 500
		g.TotalWithdrawn = 300
		got, err := g.AvailableForAdminWithdrawal()
		if err != nil {
			t.Fatalf("funds=%d: %v", funds, err)
		}
		if got < prev {
			t.Errorf("available decreased with funds: %d at funds %d (prev %d)", got, funds, prev)
		}
		base := funds + 500
		var ceiling uint64
		if base > 300 {
			ceiling = base - 300
		}
		if got > ceiling {
			t.Errorf("available %d exceeds ceiling %d at funds %d", got, ceiling, funds)
		}
		prev = got
	}
}

func TestGlobalWordsRoundTrip(t *testing.T) {
	g := NewGlobalState()
	g.Tick = 42
	g.AccountCount = 3
	g.TotalFunds = 1_000_000
	g.TotalWithdrawn = 250
	g.TotalInterestPaid = 99
	g.TotalRechargeAmount = 12
	g.TxCounter = 5
	g.TxSize = 2

	restored, err := GlobalFromWords(g.ToWords())
	if err != nil {
		t.Fatalf("GlobalFromWords: %v", err)
	}
	if *restored != *g {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", restored, g)
	}

	if _, err := GlobalFromWords([]uint64{1, 2}); err == nil {
		t.Error("GlobalFromWords should reject short input")
	}
}

func TestLoadSaveGlobal(t *testing.T) {
	s := store.NewMemStore()

	// Cold start yields genesis defaults.
	g, err := LoadGlobal(s)
	if err != nil {
		t.Fatalf("LoadGlobal cold: %v", err)
	}
	if g.NextProductID != 1 {
		t.Errorf("cold start NextProductID = %d", g.NextProductID)
	}

	g.Tick = 100
	g.TotalFunds = 777
	SaveGlobal(s, g)

	reloaded, err := LoadGlobal(s)
	if err != nil {
		t.Fatalf("LoadGlobal warm: %v", err)
	}
	if reloaded.Tick != 100 || reloaded.TotalFunds != 777 {
		t.Errorf("reloaded = %+v", reloaded)
	}
}
