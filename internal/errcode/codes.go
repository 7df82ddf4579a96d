// Package errcode defines the closed set of result codes the ledger core
// can produce. Codes are small integers that appear in persisted event rows
// and API responses, so their numeric values are stable across releases.
package errcode

import (
	"errors"
	"fmt"
)

// Code is a ledger result code. Zero means success.
type Code uint32

const (
	OK Code = iota
	Overflow
	Underflow
	DivisionByZero
	AccountNotFound
	AccountExists
	InsufficientBalance
	InsufficientPoints
	InvalidPointsAmount
	PointsAmountTooSmall
	ProductTypeNotExist
	ProductTypeInactive
	CertificateNotExist
	CertificateNotOwned
	CertificateNotMatured
	CertificateAlreadyRedeemed
	InsufficientInterest
	InvalidPrincipalAmount
	PrincipalAmountTooSmall
	InvalidApy
	InvalidDuration
	InvalidReserveRatio
	InvalidCommand
	InvalidNonce
	Unauthorized
)

var names = map[Code]string{
	OK:                         "OK",
	Overflow:                   "Overflow",
	Underflow:                  "Underflow",
	DivisionByZero:             "DivisionByZero",
	AccountNotFound:            "AccountNotFound",
	AccountExists:              "AccountExists",
	InsufficientBalance:        "InsufficientBalance",
	InsufficientPoints:         "InsufficientPoints",
	InvalidPointsAmount:        "InvalidPointsAmount",
	PointsAmountTooSmall:       "PointsAmountTooSmall",
	ProductTypeNotExist:        "ProductTypeNotExist",
	ProductTypeInactive:        "ProductTypeInactive",
	CertificateNotExist:        "CertificateNotExist",
	CertificateNotOwned:        "CertificateNotOwned",
	CertificateNotMatured:      "CertificateNotMatured",
	CertificateAlreadyRedeemed: "CertificateAlreadyRedeemed",
	InsufficientInterest:       "InsufficientInterest",
	InvalidPrincipalAmount:     "InvalidPrincipalAmount",
	PrincipalAmountTooSmall:    "PrincipalAmountTooSmall",
	InvalidApy:                 "InvalidApy",
	InvalidDuration:            "InvalidDuration",
	InvalidReserveRatio:        "InvalidReserveRatio",
	InvalidCommand:             "InvalidCommand",
	InvalidNonce:               "InvalidNonce",
	Unauthorized:               "Unauthorized",
}

func (c Code) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

// Error makes Code usable as an error value. OK should never be returned
// as an error; handlers return nil on success.
func (c Code) Error() string {
	return c.String()
}

// FromError extracts the Code from an error chain. Infrastructure errors
// that carry no Code map to InvalidCommand; the core only ever returns
// Code values, so anything else is a malformed input.
func FromError(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return InvalidCommand
}
