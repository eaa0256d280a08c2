package crossborder

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the protocol error taxonomy. The transport layer maps
// these onto HTTP statuses; everything else in the system branches on the
// code, never on the message text.
const (
	// ErrCodeValidation marks a malformed or internally inconsistent
	// instruction. No side effect has happened; the message is rejected.
	ErrCodeValidation = "validation_failed"
	// ErrCodeLockMismatch marks a disagreement between the on-chain lock
	// and the relayed instruction. Treated as a trust violation.
	ErrCodeLockMismatch = "lock_mismatch"
	// ErrCodeUnsupportedRoute marks an instruction in which none of the
	// expected identity slots matches this party's wallet.
	ErrCodeUnsupportedRoute = "unsupported_route"
	// ErrCodeLedgerTx marks a failed create/withdraw/refund call. For a
	// synchronous caller this is fatal; refund and withdraw are retried
	// on the next timer tick or event observation.
	ErrCodeLedgerTx = "ledger_tx_failed"
	// ErrCodeRelay marks a failed downstream notification after local
	// state was already committed.
	ErrCodeRelay = "relay_failed"
	// ErrCodeUnknownPayment marks a completion for which no matching
	// record exists.
	ErrCodeUnknownPayment = "unknown_payment"
	// ErrCodeDuplicatePayment marks a replayed message for a payment that
	// was already processed in this role.
	ErrCodeDuplicatePayment = "duplicate_payment"
	// ErrCodeInsufficientFunds marks a setup rejected because the wallet
	// cannot cover the requested lock.
	ErrCodeInsufficientFunds = "insufficient_funds"
)

// ProtocolError is the error type crossing package boundaries in this
// module. Code is one of the ErrCode constants above.
type ProtocolError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Errorf builds a ProtocolError with a formatted message.
func Errorf(code, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds a ProtocolError around an underlying cause.
func WrapError(code, message string, err error) *ProtocolError {
	return &ProtocolError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the protocol error code from err, or "" when err is not
// a ProtocolError.
func CodeOf(err error) string {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// HTTPStatus maps an error onto the status the transport should answer
// with. Anything without a protocol code is a plain internal error.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeValidation, ErrCodeLockMismatch, ErrCodeUnsupportedRoute:
		return http.StatusBadRequest
	case ErrCodeUnknownPayment:
		return http.StatusNotFound
	case ErrCodeDuplicatePayment:
		return http.StatusConflict
	case ErrCodeLedgerTx, ErrCodeRelay, ErrCodeInsufficientFunds:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
