package event

// ProductCreated records a new catalog entry.
type ProductCreated struct {
	ProductTypeID   uint64
	DurationTicks   uint64
	RateBasisPoints uint64
	MinAmount       uint64
	Active          bool
}

func (e *ProductCreated) Type() EventType { return EventTypeProductCreated }

func (e *ProductCreated) Words() []uint64 {
	return []uint64{e.ProductTypeID, e.DurationTicks, e.RateBasisPoints, e.MinAmount, boolWord(e.Active)}
}

// ProductModified records an in-place rewrite of a catalog entry.
type ProductModified struct {
	ProductTypeID   uint64
	DurationTicks   uint64
	RateBasisPoints uint64
	MinAmount       uint64
	Active          bool
}

func (e *ProductModified) Type() EventType { return EventTypeProductModified }

func (e *ProductModified) Words() []uint64 {
	return []uint64{e.ProductTypeID, e.DurationTicks, e.RateBasisPoints, e.MinAmount, boolWord(e.Active)}
}

func boolWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
