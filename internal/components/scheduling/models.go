// Package scheduling implements the bilateral invitation workflow and the
// calendar view built on top of it.
//
// An invitation carries a set of proposed dates from its sender. The recipient
// accepts exactly one of them, which claims that day (a Busyday) for both
// participants in a single transaction. Storage is abstracted behind Store so
// the same engine runs on the memory, sqlite and mysql drivers.
package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an invitation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// ParseStatus parses a status filter value. Empty input yields StatusPending.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending":
		return StatusPending, nil
	case "accepted":
		return StatusAccepted, nil
	case "declined":
		return StatusDeclined, nil
	default:
		return "", badRequest(ReasonInvalidStatus,
			fmt.Sprintf("invalid status %q: must be one of pending, accepted, declined", s))
	}
}

// Direction tags a pending proposal from the calendar owner's point of view.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Invitation is a scheduling proposal from FromUserID to ToUserID.
// SelectedDate is set if and only if Status is StatusAccepted.
type Invitation struct {
	ID           uuid.UUID
	FromUserID   uuid.UUID
	ToUserID     uuid.UUID
	Status       Status
	SelectedDate *Date
	CreatedAt    time.Time
	Dates        []ProposedDate
}

// ProposedDate is one candidate day offered by the sender.
type ProposedDate struct {
	ID           uuid.UUID
	InvitationID uuid.UUID
	Date         Date
}

// Busyday is an exclusive claim of a user on a day.
// EventID references the accepted invitation that produced it.
type Busyday struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	Date    Date
	EventID *uuid.UUID
}

// PendingProposal is a proposed date of a pending invitation, joined with its participants.
type PendingProposal struct {
	InvitationID uuid.UUID
	FromUserID   uuid.UUID
	ToUserID     uuid.UUID
	Date         Date
}

// PendingInvite is a PendingProposal tagged relative to a calendar owner.
type PendingInvite struct {
	InvitationID uuid.UUID
	Date         Date
	Direction    Direction
}

// HasDate reports whether d is one of the proposed dates.
func (inv *Invitation) HasDate(d Date) bool {
	for _, pd := range inv.Dates {
		if pd.Date == d {
			return true
		}
	}
	return false
}

// IsParticipant reports whether user is the sender or the recipient.
func (inv *Invitation) IsParticipant(user uuid.UUID) bool {
	return inv.FromUserID == user || inv.ToUserID == user
}

func newID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
