package scheduling

import (
	"errors"
	"fmt"
)

// Kind classifies a scheduling failure. Transport layers map it to a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Stable reason codes carried by scheduling errors.
const (
	ReasonInvalidDate        = "invalid_date"
	ReasonPastDate           = "past_date"
	ReasonDuplicateDate      = "duplicate_date"
	ReasonEmptyDates         = "empty_dates"
	ReasonSelfInvitation     = "self_invitation"
	ReasonInvalidRange       = "invalid_range"
	ReasonInvalidStatus      = "invalid_status"
	ReasonNotFriends         = "not_friends"
	ReasonNotParticipant     = "not_participant"
	ReasonInvitationNotFound = "invitation_not_found"
	ReasonDateNotProposed    = "date_not_proposed"
	ReasonDayBusy            = "day_busy"
	ReasonInternal           = "internal_error"
)

// Error is the error type returned by Engine and Aggregator.
// Message is safe to show to callers; Err holds the underlying cause and is never rendered.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

func badRequest(reason, message string) *Error {
	return newError(KindBadRequest, reason, message)
}

func notFound() *Error {
	return newError(KindNotFound, ReasonInvitationNotFound, "invitation not found")
}

func internalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Reason: ReasonInternal, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
