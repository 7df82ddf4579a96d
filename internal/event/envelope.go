// Package event defines the typed outcomes the engine appends to the
// event log, one per applied command.
package event

import (
	"github.com/google/uuid"

	"CertLedger/internal/errcode"
	"CertLedger/internal/ledger"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeTicked
	EventTypeAccountInstalled
	EventTypeDeposited
	EventTypeWithdrawn
	EventTypePointsWithdrawn
	EventTypeProductCreated
	EventTypeProductModified
	EventTypeCertificatePurchased
	EventTypeInterestClaimed
	EventTypePrincipalRedeemed
	EventTypeAdminWithdrawn
	EventTypeReserveRatioChanged
	EventTypeCommandRejected
)

func (et EventType) String() string {
	switch et {
	case EventTypeTicked:
		return "Ticked"
	case EventTypeAccountInstalled:
		return "AccountInstalled"
	case EventTypeDeposited:
		return "Deposited"
	case EventTypeWithdrawn:
		return "Withdrawn"
	case EventTypePointsWithdrawn:
		return "PointsWithdrawn"
	case EventTypeProductCreated:
		return "ProductCreated"
	case EventTypeProductModified:
		return "ProductModified"
	case EventTypeCertificatePurchased:
		return "CertificatePurchased"
	case EventTypeInterestClaimed:
		return "InterestClaimed"
	case EventTypePrincipalRedeemed:
		return "PrincipalRedeemed"
	case EventTypeAdminWithdrawn:
		return "AdminWithdrawn"
	case EventTypeReserveRatioChanged:
		return "ReserveRatioChanged"
	case EventTypeCommandRejected:
		return "CommandRejected"
	default:
		return "Unknown"
	}
}

// ParseEventType is the inverse of String, used when reading stored
// event rows back for projection rebuilds.
func ParseEventType(s string) EventType {
	for et := EventTypeTicked; et <= EventTypeCommandRejected; et++ {
		if et.String() == s {
			return et
		}
	}
	return EventTypeUnknown
}

// Payload is the typed body of an applied event. Words() is the
// canonical encoding hashed into the state chain and stored in the log.
type Payload interface {
	Type() EventType
	Words() []uint64
}

// Envelope wraps every event in the log.
type Envelope struct {
	// Tick<<32 | tx-counter, unique and monotone across the log
	EventID uint64

	Tick      uint64
	TxCounter uint64

	// Stable idempotency key from upstream
	CommandID uuid.UUID

	// Signer of the originating command
	Actor ledger.AccountID

	Type EventType

	// OK for applied commands; the failure code for rejections
	Code errcode.Code

	// Canonical payload words (see Payload.Words)
	Payload []uint64

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}
