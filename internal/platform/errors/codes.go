// Package errors provides structured error handling for profile operations.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request validation errors
	CodeInvalidPayload Code = "INVALID_PAYLOAD"

	// Lookup errors
	CodeNotFound        Code = "NOT_FOUND"
	CodeProfileNotFound Code = "PROFILE_NOT_FOUND"
	CodeItemNotFound    Code = "ITEM_NOT_FOUND"
	CodeQuestNotFound   Code = "QUEST_NOT_FOUND"
	CodeOfferNotFound   Code = "OFFER_NOT_FOUND"

	// Precondition errors
	CodeOperationForbidden    Code = "OPERATION_FORBIDDEN"
	CodeQuestNotCompleted     Code = "QUEST_NOT_COMPLETED"
	CodeRequiredItemMissing   Code = "REQUIRED_ITEM_MISSING"
	CodeInsufficientResources Code = "INSUFFICIENT_RESOURCES"
	CodeInsufficientCurrency  Code = "INSUFFICIENT_CURRENCY"
	CodeRefundPeriodExpired   Code = "REFUND_PERIOD_EXPIRED"
	CodeNoRefundCreditsLeft   Code = "NO_REFUND_CREDITS_LEFT"

	// Idempotency guards
	CodeAlreadyOwned        Code = "ALREADY_OWNED"
	CodeAlreadyPurchased    Code = "ALREADY_PURCHASED"
	CodeAlreadyRefunded     Code = "ALREADY_REFUNDED"
	CodeAlreadyClaimedToday Code = "ALREADY_CLAIMED_TODAY"

	// Storage errors
	CodeVersionConflict Code = "VERSION_CONFLICT"

	// Transport auth errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidPayload:
		return codes.InvalidArgument

	// NotFound - referenced entity absent
	case CodeNotFound,
		CodeProfileNotFound,
		CodeItemNotFound,
		CodeQuestNotFound,
		CodeOfferNotFound:
		return codes.NotFound

	// FailedPrecondition - state doesn't allow operation
	case CodeOperationForbidden,
		CodeQuestNotCompleted,
		CodeRequiredItemMissing,
		CodeInsufficientResources,
		CodeInsufficientCurrency,
		CodeRefundPeriodExpired,
		CodeNoRefundCreditsLeft:
		return codes.FailedPrecondition

	// AlreadyExists - idempotency guards
	case CodeAlreadyOwned,
		CodeAlreadyPurchased,
		CodeAlreadyRefunded,
		CodeAlreadyClaimedToday:
		return codes.AlreadyExists

	// Aborted - optimistic concurrency conflicts
	case CodeVersionConflict:
		return codes.Aborted

	// Unauthenticated - missing or invalid credentials
	case CodeUnauthenticated:
		return codes.Unauthenticated

	default:
		return codes.Internal
	}
}
