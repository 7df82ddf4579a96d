package query

// AccountResponse is an account's projected balances.
type AccountResponse struct {
	Owner     string `json:"owner"`
	IdleFunds int64  `json:"idle_funds"`
	Points    int64  `json:"points"`
	AsOfEvent int64  `json:"as_of_event_id"`
}

// CertificateResponse is a projected certificate record.
type CertificateResponse struct {
	CertificateID   int64  `json:"certificate_id"`
	Owner           string `json:"owner"`
	ProductTypeID   int64  `json:"product_type_id"`
	Principal       int64  `json:"principal"`
	MaturityTick    int64  `json:"maturity_tick"`
	RateBasisPoints int64  `json:"rate_basis_points"`
	InterestClaimed int64  `json:"interest_claimed"`
	Status          string `json:"status"`
	AsOfEvent       int64  `json:"as_of_event_id"`
}

// ProductTypeResponse is a projected catalog entry.
type ProductTypeResponse struct {
	ProductTypeID   int64 `json:"product_type_id"`
	DurationTicks   int64 `json:"duration_ticks"`
	RateBasisPoints int64 `json:"rate_basis_points"`
	MinAmount       int64 `json:"min_amount"`
	Active          bool  `json:"active"`
	AsOfEvent       int64 `json:"as_of_event_id"`
}

// StatsResponse is the projected global accounting.
type StatsResponse struct {
	Tick              int64 `json:"tick"`
	AccountCount      int64 `json:"account_count"`
	TotalFunds        int64 `json:"total_funds"`
	TotalRecharge     int64 `json:"total_recharge"`
	TotalWithdrawn    int64 `json:"total_withdrawn"`
	TotalInterestPaid int64 `json:"total_interest_paid"`
	ReserveRatio      int64 `json:"reserve_ratio"`
	AsOfEvent         int64 `json:"as_of_event_id"`
}

// IntegrityReport is the result of a hash-chain verification pass over
// the event log.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	EventsChecked   int64   `json:"events_checked"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
}
