package errors

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	base := New(CodeItemNotFound, "item xyz not found")
	wrapped := fmt.Errorf("handler: %w", base)

	if !errors.Is(wrapped, New(CodeItemNotFound, "different message")) {
		t.Fatal("expected errors.Is to match by code")
	}
	if errors.Is(wrapped, New(CodeQuestNotFound, "item xyz not found")) {
		t.Fatal("expected errors.Is to reject differing codes")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeUnknown, "save profile", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeInvalidPayload, codes.InvalidArgument},
		{CodeItemNotFound, codes.NotFound},
		{CodeProfileNotFound, codes.NotFound},
		{CodeOperationForbidden, codes.FailedPrecondition},
		{CodeInsufficientResources, codes.FailedPrecondition},
		{CodeInsufficientCurrency, codes.FailedPrecondition},
		{CodeRequiredItemMissing, codes.FailedPrecondition},
		{CodeAlreadyRefunded, codes.AlreadyExists},
		{CodeVersionConflict, codes.Aborted},
		{CodeUnknown, codes.Internal},
		{Code("SOMETHING_ELSE"), codes.Internal},
	}
	for _, tc := range tests {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Errorf("GRPCCode(%s) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestToGRPCStatusCarriesReason(t *testing.T) {
	err := WithMetadata(CodeRefundPeriodExpired, "purchase too old", map[string]string{
		"purchaseId": "abc",
	})

	st, ok := status.FromError(err.ToGRPCStatus())
	if !ok {
		t.Fatal("expected a gRPC status error")
	}
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", st.Code())
	}
	if st.Message() != "purchase too old" {
		t.Fatalf("unexpected message %q", st.Message())
	}
	if len(st.Details()) != 1 {
		t.Fatalf("expected 1 detail, got %d", len(st.Details()))
	}
}
