// Package memory implements an in-process scheduling store.
//
// Transactions write to the live state under an exclusive lock and keep an
// undo log; a failed callback replays the log in reverse, so rollback touches
// only the entries the transaction wrote.
// Stored invitations are replaced, never mutated in place.
// Data does not survive a restart.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
	"github.com/MahdiBaghbani/busyday-go/internal/store"
)

func init() {
	store.Register("memory", NewDriver)
}

type dayKey struct {
	user uuid.UUID
	date scheduling.Date
}

type pairKey struct {
	a, b uuid.UUID
}

type state struct {
	invitations map[uuid.UUID]*scheduling.Invitation
	busydays    map[dayKey]scheduling.Busyday
	friendships map[pairKey]scheduling.Friendship
}

func newState() *state {
	return &state{
		invitations: make(map[uuid.UUID]*scheduling.Invitation),
		busydays:    make(map[dayKey]scheduling.Busyday),
		friendships: make(map[pairKey]scheduling.Friendship),
	}
}

// Driver implements store.Driver and scheduling.Store in memory.
type Driver struct {
	mu     sync.RWMutex
	st     *state
	closed bool
}

// NewDriver creates a new memory driver instance.
func NewDriver(_ *store.DriverConfig) (store.Driver, error) {
	return New(), nil
}

// New returns an initialised memory store.
func New() *Driver {
	return &Driver{st: newState()}
}

// Name returns the driver name.
func (d *Driver) Name() string { return "memory" }

// Init is a no-op; the store is ready after New.
func (d *Driver) Init(_ context.Context) error { return nil }

// Close drops all data. Later calls return store.ErrClosed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.st = newState()
	return nil
}

// Ping reports ErrClosed after Close.
func (d *Driver) Ping(_ context.Context) error {
	return d.read(func(*state) error { return nil })
}

func (d *Driver) read(fn func(*state) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return store.ErrClosed
	}
	return fn(d.st)
}

// InTx runs fn against the live state and undoes its writes unless fn
// succeeds and ctx is still live. A panic in fn is rolled back and re-raised.
func (d *Driver) InTx(ctx context.Context, fn func(tx scheduling.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}

	t := &tx{st: d.st}
	committed := false
	defer func() {
		if !committed {
			t.rollback()
		}
	}()

	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetInvitation returns a copy of the invitation.
func (d *Driver) GetInvitation(_ context.Context, id uuid.UUID) (*scheduling.Invitation, error) {
	var out *scheduling.Invitation
	err := d.read(func(s *state) error {
		inv, ok := s.invitations[id]
		if !ok {
			return store.ErrNotFound
		}
		out = copyInvitation(inv)
		return nil
	})
	return out, err
}

// ListInvitations returns matching invitations, newest first.
func (d *Driver) ListInvitations(_ context.Context, f scheduling.ListFilter) ([]*scheduling.Invitation, error) {
	out := []*scheduling.Invitation{}
	err := d.read(func(s *state) error {
		for _, inv := range s.invitations {
			side := inv.ToUserID
			if f.Role == scheduling.RoleSender {
				side = inv.FromUserID
			}
			if side != f.UserID || inv.Status != f.Status {
				continue
			}
			out = append(out, copyInvitation(inv))
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *scheduling.Invitation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})
	return out, err
}

// ListBusydays returns the user's busydays in [from, to], ascending.
func (d *Driver) ListBusydays(_ context.Context, userID uuid.UUID, from, to scheduling.Date) ([]scheduling.Busyday, error) {
	out := []scheduling.Busyday{}
	err := d.read(func(s *state) error {
		for k, b := range s.busydays {
			if k.user == userID && !k.date.Before(from) && !k.date.After(to) {
				out = append(out, b)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b scheduling.Busyday) int { return a.Date.Compare(b.Date) })
	return out, err
}

// ListPendingProposals returns proposed dates of the user's pending invitations in [from, to].
func (d *Driver) ListPendingProposals(_ context.Context, userID uuid.UUID, from, to scheduling.Date) ([]scheduling.PendingProposal, error) {
	out := []scheduling.PendingProposal{}
	err := d.read(func(s *state) error {
		for _, inv := range s.invitations {
			if inv.Status != scheduling.StatusPending || !inv.IsParticipant(userID) {
				continue
			}
			for _, pd := range inv.Dates {
				if pd.Date.Before(from) || pd.Date.After(to) {
					continue
				}
				out = append(out, scheduling.PendingProposal{
					InvitationID: inv.ID,
					FromUserID:   inv.FromUserID,
					ToUserID:     inv.ToUserID,
					Date:         pd.Date,
				})
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b scheduling.PendingProposal) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.InvitationID.String(), b.InvitationID.String())
	})
	return out, err
}

// AreFriends reports an accepted friendship in either orientation.
func (d *Driver) AreFriends(_ context.Context, a, b uuid.UUID) (bool, error) {
	var ok bool
	err := d.read(func(s *state) error {
		ok = s.areFriends(a, b)
		return nil
	})
	return ok, err
}

// SaveFriendship inserts or replaces the (UserID, FriendID) row.
func (d *Driver) SaveFriendship(ctx context.Context, f *scheduling.Friendship) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.Must(uuid.NewV7())
	}
	d.st.friendships[pairKey{f.UserID, f.FriendID}] = *f
	return nil
}

func (s *state) areFriends(a, b uuid.UUID) bool {
	for _, k := range []pairKey{{a, b}, {b, a}} {
		if f, ok := s.friendships[k]; ok && f.Status == scheduling.FriendshipAccepted {
			return true
		}
	}
	return false
}

func copyInvitation(inv *scheduling.Invitation) *scheduling.Invitation {
	out := *inv
	if inv.SelectedDate != nil {
		sd := *inv.SelectedDate
		out.SelectedDate = &sd
	}
	out.Dates = slices.Clone(inv.Dates)
	slices.SortFunc(out.Dates, func(a, b scheduling.ProposedDate) int { return a.Date.Compare(b.Date) })
	return &out
}

var (
	_ store.Driver     = (*Driver)(nil)
	_ scheduling.Store = (*Driver)(nil)
)
