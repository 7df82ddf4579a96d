// Package catalog manages the admin-curated product type definitions a
// certificate locks in at purchase: duration, annual rate, minimum
// amount, and an active flag. Entries are never deleted; deactivation
// replaces deletion so existing certificates keep a resolvable product
// reference.
package catalog

import (
	"fmt"

	"CertLedger/internal/errcode"
	"CertLedger/internal/ledger"
	"CertLedger/internal/math"
	"CertLedger/internal/store"
)

// RechargeProductID is reserved and never persisted. Lookups synthesize
// the recharge product instead, so it always exists and is always
// active. External refill flows purchase it to route funds through the
// normal purchase path.
const RechargeProductID = 0

// ProductType is a catalog entry.
type ProductType struct {
	ID              uint64
	DurationTicks   uint64
	RateBasisPoints uint64
	MinAmount       uint64
	Active          bool
}

// MaturityTick computes purchase tick plus duration, overflow-checked.
func (p *ProductType) MaturityTick(purchaseTick uint64) (uint64, error) {
	return math.Add(purchaseTick, p.DurationTicks)
}

// RechargeProduct synthesizes the id-0 product: maximal duration, zero
// rate, minimum amount 1, always active.
func RechargeProduct() ProductType {
	return ProductType{
		ID:              RechargeProductID,
		DurationTicks:   ledger.MaxDurationTicks,
		RateBasisPoints: 0,
		MinAmount:       1,
		Active:          true,
	}
}

func (p *ProductType) toWords() []uint64 {
	active := uint64(0)
	if p.Active {
		active = 1
	}
	return []uint64{p.DurationTicks, p.RateBasisPoints, p.MinAmount, active}
}

func productFromWords(id uint64, words []uint64) (ProductType, error) {
	if len(words) != 4 {
		return ProductType{}, fmt.Errorf("product record: want 4 words, got %d", len(words))
	}
	return ProductType{
		ID:              id,
		DurationTicks:   words[0],
		RateBasisPoints: words[1],
		MinAmount:       words[2],
		Active:          words[3] != 0,
	}, nil
}

// validate checks the shared field invariants for create and modify.
func validate(durationTicks, rateBasisPoints, minAmount uint64) error {
	if durationTicks == 0 || durationTicks > ledger.MaxDurationTicks {
		return errcode.InvalidDuration
	}
	if rateBasisPoints > ledger.MaxAPYBasisPoints {
		return errcode.InvalidApy
	}
	if minAmount < ledger.MinCertificateAmount || minAmount > ledger.MaxCertificateAmount {
		return errcode.InvalidPrincipalAmount
	}
	return nil
}

// Catalog reads and writes product types through the word store.
type Catalog struct {
	store store.WordStore
}

func NewCatalog(s store.WordStore) *Catalog {
	return &Catalog{store: s}
}

// Create validates and persists a new product type, allocating its id
// from the global counter. Returns the allocated id.
func (c *Catalog) Create(g *ledger.GlobalState, durationTicks, rateBasisPoints, minAmount uint64, active bool) (uint64, error) {
	if err := validate(durationTicks, rateBasisPoints, minAmount); err != nil {
		return 0, err
	}

	id := g.AllocateProductID()
	p := ProductType{
		ID:              id,
		DurationTicks:   durationTicks,
		RateBasisPoints: rateBasisPoints,
		MinAmount:       minAmount,
		Active:          active,
	}
	c.store.Set(store.ProductTypeKey(id), p.toWords())
	return id, nil
}

// Modify rewrites an existing product type in place. The synthesized
// recharge product is not stored, so id 0 reports ProductTypeNotExist
// here like any other absent id.
func (c *Catalog) Modify(id, durationTicks, rateBasisPoints, minAmount uint64, active bool) error {
	if err := validate(durationTicks, rateBasisPoints, minAmount); err != nil {
		return err
	}
	if _, ok := c.store.Get(store.ProductTypeKey(id)); !ok {
		return errcode.ProductTypeNotExist
	}

	p := ProductType{
		ID:              id,
		DurationTicks:   durationTicks,
		RateBasisPoints: rateBasisPoints,
		MinAmount:       minAmount,
		Active:          active,
	}
	c.store.Set(store.ProductTypeKey(id), p.toWords())
	return nil
}

// SetActive flips the active flag on a stored product type.
func (c *Catalog) SetActive(id uint64, active bool) error {
	words, ok := c.store.Get(store.ProductTypeKey(id))
	if !ok {
		return errcode.ProductTypeNotExist
	}
	p, err := productFromWords(id, words)
	if err != nil {
		panic(fmt.Sprintf("corrupt product record %d: %v", id, err))
	}
	p.Active = active
	c.store.Set(store.ProductTypeKey(id), p.toWords())
	return nil
}

// Get resolves a product type. Id 0 always yields the synthesized
// recharge product regardless of storage state.
func (c *Catalog) Get(id uint64) (ProductType, bool) {
	if id == RechargeProductID {
		return RechargeProduct(), true
	}
	words, ok := c.store.Get(store.ProductTypeKey(id))
	if !ok {
		return ProductType{}, false
	}
	p, err := productFromWords(id, words)
	if err != nil {
		panic(fmt.Sprintf("corrupt product record %d: %v", id, err))
	}
	return p, true
}

// List returns every stored product type with id below the allocation
// watermark, in id order. Used by snapshot inspection and projections.
func (c *Catalog) List(g *ledger.GlobalState) []ProductType {
	var out []ProductType
	for id := uint64(ledger.FirstAllocatedID); id < g.NextProductID; id++ {
		if p, ok := c.Get(id); ok {
			out = append(out, p)
		}
	}
	return out
}
