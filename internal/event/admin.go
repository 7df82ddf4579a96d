package event

// Ticked records a clock advance.
type Ticked struct {
	Tick uint64
}

func (e *Ticked) Type() EventType { return EventTypeTicked }

func (e *Ticked) Words() []uint64 { return []uint64{e.Tick} }

// AdminWithdrawn records a privileged extraction against the reserve
// policy gate. Remaining is the post-withdrawal available amount.
type AdminWithdrawn struct {
	Amount         uint64
	Destination    [3]uint64
	TotalWithdrawn uint64
	Remaining      uint64
}

func (e *AdminWithdrawn) Type() EventType { return EventTypeAdminWithdrawn }

func (e *AdminWithdrawn) Words() []uint64 {
	return []uint64{e.Amount, e.Destination[0], e.Destination[1], e.Destination[2], e.TotalWithdrawn, e.Remaining}
}

// ReserveRatioChanged records a reserve policy update.
type ReserveRatioChanged struct {
	OldRatio uint64
	NewRatio uint64
}

func (e *ReserveRatioChanged) Type() EventType { return EventTypeReserveRatioChanged }

func (e *ReserveRatioChanged) Words() []uint64 { return []uint64{e.OldRatio, e.NewRatio} }
