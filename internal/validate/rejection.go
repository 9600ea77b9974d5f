package validate

import (
	"errors"
	"fmt"
)

// Reason identifies which check rejected an event.
type Reason string

const (
	ReasonFixedWithImpulse Reason = "FIXED_WITH_IMPULSE"
	ReasonMissingPosition  Reason = "MISSING_POSITION"
	ReasonOffSurface       Reason = "OFF_SURFACE"
	ReasonTooClose         Reason = "TOO_CLOSE"
	ReasonUUIDInUse        Reason = "UUID_IN_USE"
	ReasonMissingColor     Reason = "MISSING_COLOR"
	ReasonInvalidColor     Reason = "INVALID_COLOR"
	ReasonMissingImpulse   Reason = "MISSING_IMPULSE"
	ReasonNotTangential    Reason = "NOT_TANGENTIAL"
	ReasonImpulseMagnitude Reason = "IMPULSE_MAGNITUDE"
	ReasonMissingUUID      Reason = "MISSING_UUID"
	ReasonInvalidUUID      Reason = "INVALID_UUID"
	ReasonUnknownUUID      Reason = "UNKNOWN_UUID"
	ReasonNonFiniteVector  Reason = "NON_FINITE_VECTOR"
)

// Rejection is returned when the gate refuses an event. Message is safe to
// show to clients.
type Rejection struct {
	Reason  Reason
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ReasonOf returns the rejection reason carried by err, if any.
// Uses errors.As to handle wrapped errors.
func ReasonOf(err error) (Reason, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Reason, true
	}
	return "", false
}
