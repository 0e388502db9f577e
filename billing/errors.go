package billing

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure classifications every backend-native
// response code maps into. Codes a backend adapter does not recognize map to
// ErrorGeneral, never to a crash.
type ErrorKind uint8

const (
	ErrorGeneral ErrorKind = iota
	ErrorServiceUnavailable
	ErrorBillingUnavailable
	ErrorFeatureNotSupported
	ErrorDeveloper
	ErrorItemUnavailable
	ErrorInvalidProduct
	ErrorAlreadyOwned
	ErrorNotOwned
	ErrorUserCancelled
	ErrorPaymentNotAllowed
	ErrorPaymentInvalid
	ErrorProductRequestFailed
	ErrorRestoreFailed
	ErrorNetwork
	ErrorServiceTimeout
	ErrorServiceDisconnected
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorServiceUnavailable:
		return "service_unavailable"
	case ErrorBillingUnavailable:
		return "billing_unavailable"
	case ErrorFeatureNotSupported:
		return "feature_not_supported"
	case ErrorDeveloper:
		return "developer_error"
	case ErrorItemUnavailable:
		return "item_unavailable"
	case ErrorInvalidProduct:
		return "invalid_product"
	case ErrorAlreadyOwned:
		return "already_owned"
	case ErrorNotOwned:
		return "not_owned"
	case ErrorUserCancelled:
		return "user_cancelled"
	case ErrorPaymentNotAllowed:
		return "payment_not_allowed"
	case ErrorPaymentInvalid:
		return "payment_invalid"
	case ErrorProductRequestFailed:
		return "product_request_failed"
	case ErrorRestoreFailed:
		return "restore_failed"
	case ErrorNetwork:
		return "network_error"
	case ErrorServiceTimeout:
		return "service_timeout"
	case ErrorServiceDisconnected:
		return "service_disconnected"
	default:
		return "general_error"
	}
}

// Error is a classified billing failure. Callers branch on Kind;
// ErrorUserCancelled is an expected outcome, not a true failure.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WrapError(kind ErrorKind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Kind extracts the classification from err, or ErrorGeneral when err carries
// none. A nil err has no kind; callers check err first.
func Kind(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ErrorGeneral
}

func IsKind(err error, kind ErrorKind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

// Usage errors surfaced synchronously from session calls. These are
// programming errors, never delivered through a pending purchase result.
var (
	ErrNotConnected      = NewError(ErrorDeveloper, "session is not connected")
	ErrPurchaseInFlight  = NewError(ErrorDeveloper, "another purchase is already in flight")
	ErrPurchaseCancelled = NewError(ErrorUserCancelled, "purchase was cancelled")
)
