package scheduling

import (
	"context"

	"github.com/google/uuid"
)

// FriendshipStatus is the state of a friendship row.
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

// Friendship links two users. Rows are symmetric for lookups: either
// (UserID, FriendID) orientation satisfies AreFriends.
type Friendship struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	FriendID uuid.UUID
	Status   FriendshipStatus
}

// FriendshipGate answers whether two users hold an accepted friendship.
// Friend-request management lives outside this package.
type FriendshipGate interface {
	AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// FriendshipGateFunc adapts a function to FriendshipGate.
type FriendshipGateFunc func(ctx context.Context, a, b uuid.UUID) (bool, error)

func (f FriendshipGateFunc) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return f(ctx, a, b)
}
