package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeNames(t *testing.T) {
	cases := []struct {
		code Code
		want string
	}{
		{OK, "OK"},
		{Overflow, "Overflow"},
		{CertificateAlreadyRedeemed, "CertificateAlreadyRedeemed"},
		{Unauthorized, "Unauthorized"},
		{Code(9999), "Code(9999)"},
	}

	for _, c := range cases {
		if got := c.code.String(); got != c.want {
			t.Errorf("String(%d) = %q, want %q", uint32(c.code), got, c.want)
		}
	}
}

func TestFromError(t *testing.T) {
	if got := FromError(nil); got != OK {
		t.Errorf("FromError(nil) = %v, want OK", got)
	}

	if got := FromError(InsufficientBalance); got != InsufficientBalance {
		t.Errorf("FromError(InsufficientBalance) = %v", got)
	}

	// Wrapped codes must survive the chain.
	wrapped := fmt.Errorf("claim failed: %w", InsufficientInterest)
	if got := FromError(wrapped); got != InsufficientInterest {
		t.Errorf("FromError(wrapped) = %v, want InsufficientInterest", got)
	}

	// Non-code errors map to InvalidCommand.
	if got := FromError(errors.New("boom")); got != InvalidCommand {
		t.Errorf("FromError(plain error) = %v, want InvalidCommand", got)
	}
}

func TestErrorsIs(t *testing.T) {
	wrapped := fmt.Errorf("redeem: %w", CertificateNotMatured)
	if !errors.Is(wrapped, CertificateNotMatured) {
		t.Error("errors.Is should match wrapped code")
	}
	if errors.Is(wrapped, CertificateAlreadyRedeemed) {
		t.Error("errors.Is should not match a different code")
	}
}
