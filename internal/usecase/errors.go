package usecase

import "fmt"

type ErrorCode string

const (
	// Turn failures. Each becomes one assistant turn in the transcript.
	ErrorMissingCredential ErrorCode = "MISSING_CREDENTIAL"
	ErrorTransport         ErrorCode = "TRANSPORT_FAILURE"
	ErrorNonSuccessStatus  ErrorCode = "NON_SUCCESS_STATUS"
	ErrorMalformedResponse ErrorCode = "MALFORMED_RESPONSE"

	// EmptyInput is never surfaced to the user.
	ErrorEmptyInput ErrorCode = "EMPTY_INPUT"

	ErrorBusy            ErrorCode = "BUSY"
	ErrorInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrorSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrorInternal        ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error with the same code, so callers can compare against
// ErrBusy and friends with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// ErrBusy is returned when a submission arrives while a turn is in flight.
var ErrBusy = newError(ErrorBusy, "turn_in_flight", nil)
