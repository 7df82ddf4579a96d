package ledger

// System time base. A tick is the discrete time unit; time advances only
// through the privileged tick operation, never from the wall clock.
const (
	SecondsPerTick = 5
	TicksPerDay    = 17280
	SecondsPerYear = 31536000
)

// Rate and amount bounds.
const (
	// BasisPointsDivisor: 10000 basis points = 100%.
	BasisPointsDivisor = 10000

	MinCertificateAmount = 10
	MaxCertificateAmount = 1_000_000_000

	// MaxAPYBasisPoints caps product rates at 500%.
	MaxAPYBasisPoints = 50_000

	// MaxDurationTicks is ten years.
	MaxDurationTicks = 3650 * TicksPerDay
)

// Points redemption: one external unit burns PointsDivisor points.
const (
	PointsDivisor       = 17280
	MinPointsWithdrawal = 1
)

// Reserve policy bounds. The ratio is expressed in basis points and can
// never exceed half the divisor.
const (
	MaxReserveRatio     = 5000
	DefaultReserveRatio = 1000
)

// Settlement flush cadence: pending settlement instructions are flushed
// every FlushIntervalTicks ticks, or earlier once FlushMaxPending
// instructions have accumulated.
const (
	FlushIntervalTicks = 600
	FlushMaxPending    = 40
)

// ID allocation counters start at 1; 0 is reserved (the synthesized
// recharge product on the catalog side, "no certificate" elsewhere).
const FirstAllocatedID = 1
