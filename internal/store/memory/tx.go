package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
	"github.com/MahdiBaghbani/busyday-go/internal/store"
)

// tx mutates the live state while Driver.InTx holds the write lock.
type tx struct {
	st   *state
	undo []func()
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// putInvitation stores inv and records how to restore the previous entry.
func (t *tx) putInvitation(id uuid.UUID, inv *scheduling.Invitation) {
	prev, had := t.st.invitations[id]
	if inv == nil {
		delete(t.st.invitations, id)
	} else {
		t.st.invitations[id] = inv
	}
	t.undo = append(t.undo, func() {
		if had {
			t.st.invitations[id] = prev
		} else {
			delete(t.st.invitations, id)
		}
	})
}

func (t *tx) AreFriends(_ context.Context, a, b uuid.UUID) (bool, error) {
	return t.st.areFriends(a, b), nil
}

func (t *tx) CreateInvitation(_ context.Context, inv *scheduling.Invitation) error {
	if _, ok := t.st.invitations[inv.ID]; ok {
		return store.ErrAlreadyExists
	}
	seen := make(map[scheduling.Date]struct{}, len(inv.Dates))
	for _, pd := range inv.Dates {
		if _, dup := seen[pd.Date]; dup {
			return store.ErrAlreadyExists
		}
		seen[pd.Date] = struct{}{}
	}
	t.putInvitation(inv.ID, copyInvitation(inv))
	return nil
}

func (t *tx) GetPendingInvitation(_ context.Context, id uuid.UUID) (*scheduling.Invitation, error) {
	inv, ok := t.st.invitations[id]
	if !ok || inv.Status != scheduling.StatusPending {
		return nil, store.ErrNotFound
	}
	return copyInvitation(inv), nil
}

func (t *tx) BusydayExists(_ context.Context, userID uuid.UUID, d scheduling.Date) (bool, error) {
	_, ok := t.st.busydays[dayKey{userID, d}]
	return ok, nil
}

func (t *tx) MarkAccepted(_ context.Context, id uuid.UUID, d scheduling.Date) error {
	inv, ok := t.st.invitations[id]
	if !ok || inv.Status != scheduling.StatusPending {
		return store.ErrNotFound
	}
	next := copyInvitation(inv)
	next.Status = scheduling.StatusAccepted
	next.SelectedDate = &d
	t.putInvitation(id, next)
	return nil
}

func (t *tx) MarkDeclined(_ context.Context, id uuid.UUID) error {
	inv, ok := t.st.invitations[id]
	if !ok || inv.Status != scheduling.StatusPending {
		return store.ErrNotFound
	}
	next := copyInvitation(inv)
	next.Status = scheduling.StatusDeclined
	t.putInvitation(id, next)
	return nil
}

func (t *tx) InsertBusydays(_ context.Context, days []scheduling.Busyday) error {
	staged := make(map[dayKey]struct{}, len(days))
	for _, b := range days {
		k := dayKey{b.UserID, b.Date}
		if _, ok := t.st.busydays[k]; ok {
			return store.ErrAlreadyExists
		}
		if _, ok := staged[k]; ok {
			return store.ErrAlreadyExists
		}
		staged[k] = struct{}{}
	}
	for _, b := range days {
		k := dayKey{b.UserID, b.Date}
		t.st.busydays[k] = b
		t.undo = append(t.undo, func() { delete(t.st.busydays, k) })
	}
	return nil
}

func (t *tx) DeleteInvitation(_ context.Context, id uuid.UUID) error {
	if _, ok := t.st.invitations[id]; !ok {
		return store.ErrNotFound
	}
	t.putInvitation(id, nil)
	return nil
}

var _ scheduling.Tx = (*tx)(nil)
