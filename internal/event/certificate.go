package event

import "CertLedger/internal/ledger"

// CertificatePurchased records conversion of idle funds into a
// certificate. Recharge flags the purchase that reclassified funds as
// external funding.
type CertificatePurchased struct {
	Owner         ledger.AccountID
	CertificateID uint64
	ProductTypeID uint64
	Principal     uint64
	MaturityTick  uint64
	RateLocked    uint64
	Recharge      bool
}

func (e *CertificatePurchased) Type() EventType { return EventTypeCertificatePurchased }

func (e *CertificatePurchased) Words() []uint64 {
	return []uint64{e.Owner[0], e.Owner[1], e.CertificateID, e.ProductTypeID, e.Principal, e.MaturityTick, e.RateLocked, boolWord(e.Recharge)}
}

// InterestClaimed records an interest payout to idle funds.
type InterestClaimed struct {
	Owner           ledger.AccountID
	CertificateID   uint64
	Amount          uint64
	InterestClaimed uint64
}

func (e *InterestClaimed) Type() EventType { return EventTypeInterestClaimed }

func (e *InterestClaimed) Words() []uint64 {
	return []uint64{e.Owner[0], e.Owner[1], e.CertificateID, e.Amount, e.InterestClaimed}
}

// PrincipalRedeemed records return of a matured certificate's principal.
type PrincipalRedeemed struct {
	Owner         ledger.AccountID
	CertificateID uint64
	Principal     uint64
}

func (e *PrincipalRedeemed) Type() EventType { return EventTypePrincipalRedeemed }

func (e *PrincipalRedeemed) Words() []uint64 {
	return []uint64{e.Owner[0], e.Owner[1], e.CertificateID, e.Principal}
}
