package core

import (
	"CertLedger/internal/errcode"
	"CertLedger/internal/ledger"
)

// Kind is the closed enumeration of operation kinds. Values are part of
// the wire format and must not be renumbered.
type Kind uint64

const (
	KindTick                Kind = 0
	KindInstallAccount      Kind = 1
	KindWithdraw            Kind = 2
	KindDeposit             Kind = 3
	KindWithdrawPoints      Kind = 5
	KindCreateProductType   Kind = 6
	KindModifyProductType   Kind = 7
	KindPurchaseCertificate Kind = 10
	KindClaimInterest       Kind = 11
	KindRedeemPrincipal     Kind = 12
	KindAdminWithdraw       Kind = 13
	KindSetReserveRatio     Kind = 14
)

func (k Kind) String() string {
	switch k {
	case KindTick:
		return "Tick"
	case KindInstallAccount:
		return "InstallAccount"
	case KindWithdraw:
		return "Withdraw"
	case KindDeposit:
		return "Deposit"
	case KindWithdrawPoints:
		return "WithdrawPoints"
	case KindCreateProductType:
		return "CreateProductType"
	case KindModifyProductType:
		return "ModifyProductType"
	case KindPurchaseCertificate:
		return "PurchaseCertificate"
	case KindClaimInterest:
		return "ClaimInterest"
	case KindRedeemPrincipal:
		return "RedeemPrincipal"
	case KindAdminWithdraw:
		return "AdminWithdraw"
	case KindSetReserveRatio:
		return "SetReserveRatio"
	default:
		return "Unknown"
	}
}

// Operation is a decoded, length-validated command. The authorization
// predicate is attached per variant so a new kind cannot silently skip
// the privilege check.
type Operation interface {
	Kind() Kind
	Privileged() bool
}

// Tick advances the time base by one.
type Tick struct{}

func (Tick) Kind() Kind       { return KindTick }
func (Tick) Privileged() bool { return true }

// InstallAccount registers the signer's account.
type InstallAccount struct{}

func (InstallAccount) Kind() Kind       { return KindInstallAccount }
func (InstallAccount) Privileged() bool { return false }

// Withdraw pays idle funds out to an external address. The amount lives
// in the low 32 bits of Data[0]; the destination address occupies the
// high half of Data[0] and the two following words.
type Withdraw struct {
	Data [3]uint64
}

func (Withdraw) Kind() Kind       { return KindWithdraw }
func (Withdraw) Privileged() bool { return false }
func (w Withdraw) Amount() uint64 { return w.Data[0] & 0xffffffff }

// WithdrawPoints burns points in exchange for an external payout. Shares
// the Withdraw wire layout; the privileged identity bypasses the balance
// check entirely.
type WithdrawPoints struct {
	Data [3]uint64
}

func (WithdrawPoints) Kind() Kind       { return KindWithdrawPoints }
func (WithdrawPoints) Privileged() bool { return false }
func (w WithdrawPoints) Amount() uint64 { return w.Data[0] & 0xffffffff }

// Deposit credits idle funds to a target account.
type Deposit struct {
	Target ledger.AccountID
	Amount uint64
}

func (Deposit) Kind() Kind       { return KindDeposit }
func (Deposit) Privileged() bool { return true }

// CreateProductType adds a catalog entry.
type CreateProductType struct {
	DurationTicks   uint64
	RateBasisPoints uint64
	MinAmount       uint64
	Active          bool
}

func (CreateProductType) Kind() Kind       { return KindCreateProductType }
func (CreateProductType) Privileged() bool { return true }

// ModifyProductType rewrites a catalog entry in place.
type ModifyProductType struct {
	ProductTypeID   uint64
	RateBasisPoints uint64
	DurationTicks   uint64
	MinAmount       uint64
	Active          bool
}

func (ModifyProductType) Kind() Kind       { return KindModifyProductType }
func (ModifyProductType) Privileged() bool { return true }

// PurchaseCertificate converts idle funds into a certificate.
type PurchaseCertificate struct {
	ProductTypeID uint64
	Amount        uint64
}

func (PurchaseCertificate) Kind() Kind       { return KindPurchaseCertificate }
func (PurchaseCertificate) Privileged() bool { return false }

// ClaimInterest pays out accrued interest on a certificate.
type ClaimInterest struct {
	CertificateID uint64
}

func (ClaimInterest) Kind() Kind       { return KindClaimInterest }
func (ClaimInterest) Privileged() bool { return false }

// RedeemPrincipal returns a matured certificate's principal.
type RedeemPrincipal struct {
	CertificateID uint64
}

func (RedeemPrincipal) Kind() Kind       { return KindRedeemPrincipal }
func (RedeemPrincipal) Privileged() bool { return false }

// AdminWithdraw extracts funds to the fixed external destination, gated
// by the reserve policy.
type AdminWithdraw struct {
	Amount uint64
}

func (AdminWithdraw) Kind() Kind       { return KindAdminWithdraw }
func (AdminWithdraw) Privileged() bool { return true }

// SetReserveRatio updates the reserve policy.
type SetReserveRatio struct {
	Ratio uint64
}

func (SetReserveRatio) Kind() Kind       { return KindSetReserveRatio }
func (SetReserveRatio) Privileged() bool { return true }

// DecodeOperation parses a flat command descriptor. Word 0 packs the
// kind in the low byte and the replay nonce above bit 16; the remaining
// words are kind-specific. Malformed descriptors fail InvalidCommand;
// decoding never panics on wire input.
func DecodeOperation(params []uint64) (Operation, uint64, error) {
	if len(params) == 0 {
		return nil, 0, errcode.InvalidCommand
	}
	kind := Kind(params[0] & 0xff)
	nonce := params[0] >> 16

	switch kind {
	case KindTick:
		return Tick{}, nonce, nil

	case KindInstallAccount:
		return InstallAccount{}, nonce, nil

	case KindWithdraw:
		if len(params) != 5 {
			return nil, 0, errcode.InvalidCommand
		}
		return Withdraw{Data: [3]uint64{params[2], params[3], params[4]}}, nonce, nil

	case KindWithdrawPoints:
		if len(params) != 5 {
			return nil, 0, errcode.InvalidCommand
		}
		return WithdrawPoints{Data: [3]uint64{params[2], params[3], params[4]}}, nonce, nil

	case KindDeposit:
		// Word 3 is the token index; only token 0 is accepted.
		if len(params) != 5 || params[3] != 0 {
			return nil, 0, errcode.InvalidCommand
		}
		return Deposit{
			Target: ledger.AccountID{params[1], params[2]},
			Amount: params[4],
		}, nonce, nil

	case KindCreateProductType:
		if len(params) != 6 {
			return nil, 0, errcode.InvalidCommand
		}
		return CreateProductType{
			DurationTicks:   params[2],
			RateBasisPoints: params[3],
			MinAmount:       params[4],
			Active:          params[5] != 0,
		}, nonce, nil

	case KindModifyProductType:
		if len(params) != 7 {
			return nil, 0, errcode.InvalidCommand
		}
		return ModifyProductType{
			ProductTypeID:   params[2],
			RateBasisPoints: params[3],
			DurationTicks:   params[4],
			MinAmount:       params[5],
			Active:          params[6] != 0,
		}, nonce, nil

	case KindPurchaseCertificate:
		if len(params) != 4 {
			return nil, 0, errcode.InvalidCommand
		}
		return PurchaseCertificate{ProductTypeID: params[2], Amount: params[3]}, nonce, nil

	case KindClaimInterest:
		if len(params) != 2 {
			return nil, 0, errcode.InvalidCommand
		}
		return ClaimInterest{CertificateID: params[1]}, nonce, nil

	case KindRedeemPrincipal:
		if len(params) != 2 {
			return nil, 0, errcode.InvalidCommand
		}
		return RedeemPrincipal{CertificateID: params[1]}, nonce, nil

	case KindAdminWithdraw:
		if len(params) != 2 {
			return nil, 0, errcode.InvalidCommand
		}
		return AdminWithdraw{Amount: params[1]}, nonce, nil

	case KindSetReserveRatio:
		if len(params) != 2 {
			return nil, 0, errcode.InvalidCommand
		}
		return SetReserveRatio{Ratio: params[1]}, nonce, nil

	default:
		return nil, 0, errcode.InvalidCommand
	}
}
