package scheduling

import (
	"context"

	"github.com/google/uuid"
)

// Role selects which side of an invitation a list query matches.
type Role int

const (
	RoleRecipient Role = iota // incoming
	RoleSender                // outgoing
)

// ListFilter selects invitations for one participant.
type ListFilter struct {
	UserID uuid.UUID
	Role   Role
	Status Status
}

// Reader is the read side of the scheduling store.
//
// Errors follow the store package contract: store.ErrNotFound for missing
// rows, store.ErrAlreadyExists for unique violations, anything else is a
// storage failure.
type Reader interface {
	// GetInvitation returns an invitation with its proposed dates sorted ascending.
	GetInvitation(ctx context.Context, id uuid.UUID) (*Invitation, error)

	// ListInvitations returns matching invitations, newest first.
	ListInvitations(ctx context.Context, f ListFilter) ([]*Invitation, error)

	// ListBusydays returns a user's busydays within [from, to], ascending by date.
	ListBusydays(ctx context.Context, userID uuid.UUID, from, to Date) ([]Busyday, error)

	// ListPendingProposals returns proposed dates within [from, to] of pending
	// invitations where userID is sender or recipient, ascending by date.
	ListPendingProposals(ctx context.Context, userID uuid.UUID, from, to Date) ([]PendingProposal, error)

	FriendshipGate
}

// Tx is the write side, valid only inside Store.InTx.
type Tx interface {
	AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error)

	// CreateInvitation inserts inv and all of inv.Dates.
	CreateInvitation(ctx context.Context, inv *Invitation) error

	// GetPendingInvitation loads a pending invitation with its dates. Drivers
	// that support row locks hold the invitation row until the transaction ends.
	// Returns store.ErrNotFound when absent or not pending.
	GetPendingInvitation(ctx context.Context, id uuid.UUID) (*Invitation, error)

	BusydayExists(ctx context.Context, userID uuid.UUID, d Date) (bool, error)

	// MarkAccepted moves a pending invitation to accepted with the given date.
	// Returns store.ErrNotFound when no pending row matched.
	MarkAccepted(ctx context.Context, id uuid.UUID, d Date) error

	// MarkDeclined moves a pending invitation to declined.
	MarkDeclined(ctx context.Context, id uuid.UUID) error

	// InsertBusydays inserts all rows or none. A (user, date) collision
	// returns store.ErrAlreadyExists.
	InsertBusydays(ctx context.Context, days []Busyday) error

	// DeleteInvitation removes an invitation and its proposed dates.
	DeleteInvitation(ctx context.Context, id uuid.UUID) error
}

// Store is implemented by every persistence driver.
type Store interface {
	Reader

	// InTx runs fn in one isolated transaction. If fn returns an error or ctx
	// is cancelled, nothing fn wrote is kept.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// SaveFriendship inserts or updates the friendship between f.UserID and f.FriendID.
	SaveFriendship(ctx context.Context, f *Friendship) error
}
