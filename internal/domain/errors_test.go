package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCode_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{ErrUnauthorized, CodeUnauthorized},
		{ErrInvalidState, CodeInvalidState},
		{ErrOrderNotFound, CodeOrderNotFound},
		{ErrAddressResolution, CodeAddressResolution},
		{ErrNoShippingQuotes, CodeNoShippingQuotes},
		{ErrBookingFailed, CodeBookingFailed},
		{ErrRefundFailed, CodeRefundFailed},
		{ErrStatusConflict, CodeStatusConflict},
		{errors.New("boom"), CodeInternal},
	}

	for _, tc := range cases {
		if got := ErrorCode(tc.err); got != tc.code {
			t.Errorf("ErrorCode(%v) = %s, expected %s", tc.err, got, tc.code)
		}
	}
}

func TestErrorCode_WrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("book shipment: %w", ErrBookingFailed)
	if got := ErrorCode(wrapped); got != CodeBookingFailed {
		t.Fatalf("wrapped error must map to BOOKING_FAILED, got %s", got)
	}
}

func TestIsStatusConflict(t *testing.T) {
	if !IsStatusConflict(fmt.Errorf("save: %w", ErrStatusConflict)) {
		t.Fatal("wrapped status conflict must be detected")
	}
	if IsStatusConflict(ErrOrderNotFound) {
		t.Fatal("not-found must not be a status conflict")
	}
}
