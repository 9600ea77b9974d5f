package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/knotter/internal/validate"
)

// Code categorizes engine errors.
type Code string

const (
	// CodeNotFound indicates the requested object does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeStorage indicates the event log failed.
	CodeStorage Code = "STORAGE_ERROR"

	// CodeValidation indicates a client request was refused.
	CodeValidation Code = "VALIDATION_ERROR"

	// CodeInternal indicates a server-side invariant broke.
	CodeInternal Code = "INTERNAL_ERROR"

	// CodeSerialization indicates an event could not be encoded or decoded.
	CodeSerialization Code = "SERIALIZATION_ERROR"
)

// Error is returned by every Engine operation that fails.
//
// Message is safe to show to clients for validation, serialization and
// not-found errors. Storage and internal errors carry the cause in Err,
// which should be logged but not exposed.
type Error struct {
	Code    Code
	Message string
	GlobeID string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.GlobeID != "" {
		msg += fmt.Sprintf(" (globe=%s)", e.GlobeID)
	}
	if e.Err != nil && e.Code != CodeValidation {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal if there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsValidation reports whether err is a refused request.
func IsValidation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeValidation
}

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeNotFound
}

// IsClientError reports whether err was caused by the request rather than
// the server.
func IsClientError(err error) bool {
	switch CodeOf(err) {
	case CodeValidation, CodeSerialization, CodeNotFound:
		return true
	}
	return false
}

// Reason returns the rejection reason carried by a validation error.
func Reason(err error) (validate.Reason, bool) {
	return validate.ReasonOf(err)
}

func validationError(globeID string, err error) *Error {
	return &Error{Code: CodeValidation, Message: err.Error(), GlobeID: globeID, Err: err}
}

func storageError(globeID, op string, err error) *Error {
	return &Error{Code: CodeStorage, Message: op + " failed", GlobeID: globeID, Err: err}
}

func serializationError(globeID string, err error) *Error {
	return &Error{Code: CodeSerialization, Message: "invalid ball event", GlobeID: globeID, Err: err}
}

func notFoundError(globeID, uuid string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("object %s is not alive", uuid), GlobeID: globeID}
}
