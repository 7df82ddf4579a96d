package catalog

import (
	"errors"
	"testing"

	"CertLedger/internal/errcode"
	"CertLedger/internal/ledger"
	"CertLedger/internal/store"
)

func newTestCatalog() (*Catalog, *ledger.GlobalState) {
	return NewCatalog(store.NewMemStore()), ledger.NewGlobalState()
}

func TestCreateAndGet(t *testing.T) {
	c, g := newTestCatalog()

	id, err := c.Create(g, 30*ledger.TicksPerDay, 1200, 1000, true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}

	p, ok := c.Get(id)
	if !ok {
		t.Fatal("Get after Create should find the product")
	}
	if p.DurationTicks != 30*ledger.TicksPerDay || p.RateBasisPoints != 1200 || p.MinAmount != 1000 || !p.Active {
		t.Errorf("stored product = %+v", p)
	}

	// Ids are monotonically assigned.
	id2, err := c.Create(g, ledger.TicksPerDay, 500, 10, false)
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if id2 != 2 {
		t.Errorf("second id = %d, want 2", id2)
	}
}

func TestCreateValidation(t *testing.T) {
	c, g := newTestCatalog()

	cases := []struct {
		name     string
		duration uint64
		rate     uint64
		min      uint64
		want     errcode.Code
	}{
		{"zero duration", 0, 100, 100, errcode.InvalidDuration},
		{"duration over max", ledger.MaxDurationTicks + 1, 100, 100, errcode.InvalidDuration},
		{"rate over max", ledger.TicksPerDay, ledger.MaxAPYBasisPoints + 1, 100, errcode.InvalidApy},
		{"min below global floor", ledger.TicksPerDay, 100, ledger.MinCertificateAmount - 1, errcode.InvalidPrincipalAmount},
		{"min above global ceiling", ledger.TicksPerDay, 100, ledger.MaxCertificateAmount + 1, errcode.InvalidPrincipalAmount},
	}

	for _, tc := range cases {
		if _, err := c.Create(g, tc.duration, tc.rate, tc.min, true); !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}

	// Boundary values are accepted.
	if _, err := c.Create(g, ledger.MaxDurationTicks, ledger.MaxAPYBasisPoints, ledger.MaxCertificateAmount, true); err != nil {
		t.Errorf("boundary Create: %v", err)
	}

	// Failed creates must not consume ids.
	if g.NextProductID != 2 {
		t.Errorf("NextProductID = %d, want 2", g.NextProductID)
	}
}

func TestModify(t *testing.T) {
	c, g := newTestCatalog()

	id, _ := c.Create(g, ledger.TicksPerDay, 1000, 100, true)

	if err := c.Modify(id, 2*ledger.TicksPerDay, 800, 200, false); err != nil {
		t.Fatalf("Modify: %v", err)
	}

	p, _ := c.Get(id)
	if p.DurationTicks != 2*ledger.TicksPerDay || p.RateBasisPoints != 800 || p.MinAmount != 200 || p.Active {
		t.Errorf("modified product = %+v", p)
	}

	if err := c.Modify(99, ledger.TicksPerDay, 100, 100, true); !errors.Is(err, errcode.ProductTypeNotExist) {
		t.Errorf("Modify unknown id err = %v", err)
	}

	// Id 0 is synthesized, not stored; modify treats it as absent.
	if err := c.Modify(RechargeProductID, ledger.TicksPerDay, 100, 100, true); !errors.Is(err, errcode.ProductTypeNotExist) {
		t.Errorf("Modify id 0 err = %v, want ProductTypeNotExist", err)
	}
}

func TestSetActive(t *testing.T) {
	c, g := newTestCatalog()

	id, _ := c.Create(g, ledger.TicksPerDay, 1000, 100, true)

	if err := c.SetActive(id, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	p, _ := c.Get(id)
	if p.Active {
		t.Error("product still active after SetActive(false)")
	}

	if err := c.SetActive(42, true); !errors.Is(err, errcode.ProductTypeNotExist) {
		t.Errorf("SetActive unknown id err = %v", err)
	}
}

func TestRechargeProduct(t *testing.T) {
	c, _ := newTestCatalog()

	// Id 0 resolves without ever being stored.
	p, ok := c.Get(RechargeProductID)
	if !ok {
		t.Fatal("Get(0) should always succeed")
	}
	if p.DurationTicks != ledger.MaxDurationTicks {
		t.Errorf("recharge duration = %d, want %d", p.DurationTicks, uint64(ledger.MaxDurationTicks))
	}
	if p.RateBasisPoints != 0 {
		t.Errorf("recharge rate = %d, want 0", p.RateBasisPoints)
	}
	if p.MinAmount != 1 {
		t.Errorf("recharge min = %d, want 1", p.MinAmount)
	}
	if !p.Active {
		t.Error("recharge product must always be active")
	}
}

func TestMaturityTick(t *testing.T) {
	p := ProductType{DurationTicks: 100}

	m, err := p.MaturityTick(50)
	if err != nil || m != 150 {
		t.Errorf("MaturityTick(50) = %d, %v, want 150, nil", m, err)
	}

	if _, err := p.MaturityTick(^uint64(0)); !errors.Is(err, errcode.Overflow) {
		t.Errorf("MaturityTick overflow err = %v", err)
	}
}

func TestList(t *testing.T) {
	c, g := newTestCatalog()

	c.Create(g, ledger.TicksPerDay, 100, 10, true)
	c.Create(g, 2*ledger.TicksPerDay, 200, 20, false)

	products := c.List(g)
	if len(products) != 2 {
		t.Fatalf("List len = %d, want 2", len(products))
	}
	if products[0].ID != 1 || products[1].ID != 2 {
		t.Errorf("List order: %+v", products)
	}
}
