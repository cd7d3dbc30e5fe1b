// Package errors provides structured error handling shared by the API surfaces.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request errors
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeUnauthorized   Code = "UNAUTHORIZED"

	// Inventory errors
	CodeItemEmptyName         Code = "ITEM_EMPTY_NAME"
	CodeItemNegativeStock     Code = "ITEM_NEGATIVE_STOCK"
	CodeItemNegativePrice     Code = "ITEM_NEGATIVE_PRICE"
	CodeItemInvalidAdjust     Code = "ITEM_INVALID_ADJUSTMENT"
	CodeRestockNoMatch        Code = "RESTOCK_NO_MATCH"
	CodeRestockInvalidRequest Code = "RESTOCK_INVALID_REQUEST"

	// Sale errors
	CodeSaleInvalidRequest Code = "SALE_INVALID_REQUEST"
	CodeSaleInvalidPayment Code = "SALE_INVALID_PAYMENT_METHOD"
	CodeSaleNoMatch        Code = "SALE_NO_MATCH"
	CodeSaleOutOfStock     Code = "SALE_OUT_OF_STOCK"

	// History errors
	CodeHistoryInvalidFeedback Code = "HISTORY_INVALID_FEEDBACK"

	// User errors
	CodeUserInvalidEmail   Code = "USER_INVALID_EMAIL"
	CodeUserEmptyName      Code = "USER_EMPTY_NAME"
	CodeUserWeakPassword   Code = "USER_WEAK_PASSWORD"
	CodeUserAlreadyExists  Code = "USER_ALREADY_EXISTS"
	CodeUserNotVerified    Code = "USER_NOT_VERIFIED"
	CodeInvalidCredentials Code = "AUTH_INVALID_CREDENTIALS"
	CodeOTPInvalid         Code = "OTP_INVALID"
	CodeOTPExpired         Code = "OTP_EXPIRED"
	CodeTokenInvalid       Code = "TOKEN_INVALID"

	// Assistant errors
	CodeAssistantUnavailable   Code = "AI_UNAVAILABLE"
	CodeAssistantQuotaExceeded Code = "AI_QUOTA_EXCEEDED"
	CodeAssistantKeyInvalid    Code = "AI_KEY_INVALID"
	CodeAssistantEmptyTurn     Code = "AI_EMPTY_TURN"
	CodeAssistantLanguage      Code = "AI_UNSUPPORTED_LANGUAGE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidRequest,
		CodeItemEmptyName,
		CodeItemNegativeStock,
		CodeItemNegativePrice,
		CodeItemInvalidAdjust,
		CodeRestockInvalidRequest,
		CodeSaleInvalidRequest,
		CodeSaleInvalidPayment,
		CodeHistoryInvalidFeedback,
		CodeUserInvalidEmail,
		CodeUserEmptyName,
		CodeUserWeakPassword,
		CodeOTPInvalid,
		CodeAssistantEmptyTurn,
		CodeAssistantLanguage:
		return http.StatusBadRequest

	case CodeUnauthorized,
		CodeInvalidCredentials,
		CodeTokenInvalid:
		return http.StatusUnauthorized

	case CodeUserNotVerified:
		return http.StatusForbidden

	// The request was understood but nothing in the ledger could satisfy it.
	case CodeSaleNoMatch,
		CodeSaleOutOfStock,
		CodeRestockNoMatch,
		CodeOTPExpired:
		return http.StatusUnprocessableEntity

	case CodeUserAlreadyExists:
		return http.StatusConflict

	case CodeNotFound:
		return http.StatusNotFound

	case CodeAssistantQuotaExceeded:
		return http.StatusTooManyRequests

	case CodeAssistantUnavailable,
		CodeAssistantKeyInvalid:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c.HTTPStatus() {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusUnprocessableEntity:
		return codes.FailedPrecondition
	case http.StatusConflict:
		return codes.AlreadyExists
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case http.StatusServiceUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
