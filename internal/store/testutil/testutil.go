// Package testutil provides the shared conformance suite for store drivers.
package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
	"github.com/MahdiBaghbani/busyday-go/internal/store"
)

// NewInvitation builds a pending invitation from -> to over the given days.
func NewInvitation(from, to uuid.UUID, days ...string) *scheduling.Invitation {
	inv := &scheduling.Invitation{
		ID:         uuid.Must(uuid.NewV7()),
		FromUserID: from,
		ToUserID:   to,
		Status:     scheduling.StatusPending,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	for _, d := range days {
		inv.Dates = append(inv.Dates, scheduling.ProposedDate{
			ID:           uuid.Must(uuid.NewV7()),
			InvitationID: inv.ID,
			Date:         scheduling.MustParseDate(d),
		})
	}
	return inv
}

// NewBusyday builds a busyday without an event reference.
func NewBusyday(user uuid.UUID, day string) scheduling.Busyday {
	return scheduling.Busyday{
		ID:     uuid.Must(uuid.NewV7()),
		UserID: user,
		Date:   scheduling.MustParseDate(day),
	}
}

// RunDriverTests runs the standard test suite against a driver.
func RunDriverTests(t *testing.T, driverName string, cfg *store.DriverConfig) {
	ctx := context.Background()

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", driverName, err)
	}
	defer driver.Close()

	if err := driver.Init(ctx); err != nil {
		t.Fatalf("failed to init %s driver: %v", driverName, err)
	}

	if driver.Name() != driverName {
		t.Errorf("expected driver name %q, got %q", driverName, driver.Name())
	}

	s, ok := driver.(scheduling.Store)
	if !ok {
		t.Fatalf("%s driver does not implement scheduling.Store", driverName)
	}

	t.Run("InvitationLifecycle", func(t *testing.T) { TestInvitationLifecycle(t, ctx, s) })
	t.Run("DuplicateProposedDate", func(t *testing.T) { TestDuplicateProposedDate(t, ctx, s) })
	t.Run("BusydayUnique", func(t *testing.T) { TestBusydayUnique(t, ctx, s) })
	t.Run("ConditionalUpdates", func(t *testing.T) { TestConditionalUpdates(t, ctx, s) })
	t.Run("ListOrdering", func(t *testing.T) { TestListOrdering(t, ctx, s) })
	t.Run("DeleteCascades", func(t *testing.T) { TestDeleteCascades(t, ctx, s) })
	t.Run("Rollback", func(t *testing.T) { TestRollback(t, ctx, s) })
	t.Run("Friendships", func(t *testing.T) { TestFriendships(t, ctx, s) })
	t.Run("PendingProposals", func(t *testing.T) { TestPendingProposals(t, ctx, s) })
}

func create(t *testing.T, ctx context.Context, s scheduling.Store, inv *scheduling.Invitation) {
	t.Helper()
	if err := s.InTx(ctx, func(tx scheduling.Tx) error {
		return tx.CreateInvitation(ctx, inv)
	}); err != nil {
		t.Fatalf("CreateInvitation failed: %v", err)
	}
}

// TestInvitationLifecycle creates, reads, lists and accepts an invitation.
func TestInvitationLifecycle(t *testing.T, ctx context.Context, s scheduling.Store) {
	alice, bob := uuid.New(), uuid.New()
	inv := NewInvitation(alice, bob, "2030-03-12", "2030-03-10", "2030-03-11")
	create(t, ctx, s, inv)

	got, err := s.GetInvitation(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvitation failed: %v", err)
	}
	if got.FromUserID != alice || got.ToUserID != bob || got.Status != scheduling.StatusPending {
		t.Errorf("unexpected invitation: %+v", got)
	}
	if got.SelectedDate != nil {
		t.Errorf("pending invitation has selected date %v", got.SelectedDate)
	}
	want := []string{"2030-03-10", "2030-03-11", "2030-03-12"}
	if len(got.Dates) != len(want) {
		t.Fatalf("expected %d dates, got %d", len(want), len(got.Dates))
	}
	for i, d := range got.Dates {
		if d.Date.String() != want[i] {
			t.Errorf("date[%d] = %s, want %s", i, d.Date, want[i])
		}
		if d.InvitationID != inv.ID {
			t.Errorf("date[%d] has invitation id %s", i, d.InvitationID)
		}
	}

	incoming, err := s.ListInvitations(ctx, scheduling.ListFilter{UserID: bob, Role: scheduling.RoleRecipient, Status: scheduling.StatusPending})
	if err != nil {
		t.Fatalf("ListInvitations failed: %v", err)
	}
	if len(incoming) != 1 || incoming[0].ID != inv.ID {
		t.Errorf("expected bob to see one incoming invitation, got %d", len(incoming))
	}
	outgoing, _ := s.ListInvitations(ctx, scheduling.ListFilter{UserID: bob, Role: scheduling.RoleSender, Status: scheduling.StatusPending})
	if len(outgoing) != 0 {
		t.Errorf("expected bob to have no outgoing invitations, got %d", len(outgoing))
	}

	day := scheduling.MustParseDate("2030-03-11")
	if err := s.InTx(ctx, func(tx scheduling.Tx) error {
		return tx.MarkAccepted(ctx, inv.ID, day)
	}); err != nil {
		t.Fatalf("MarkAccepted failed: %v", err)
	}
	got, _ = s.GetInvitation(ctx, inv.ID)
	if got.Status != scheduling.StatusAccepted || got.SelectedDate == nil || *got.SelectedDate != day {
		t.Errorf("expected accepted on %s, got %s %v", day, got.Status, got.SelectedDate)
	}
	accepted, _ := s.ListInvitations(ctx, scheduling.ListFilter{UserID: alice, Role: scheduling.RoleSender, Status: scheduling.StatusAccepted})
	if len(accepted) != 1 {
		t.Errorf("expected one accepted outgoing invitation, got %d", len(accepted))
	}

	if _, err := s.GetInvitation(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown id, got %v", err)
	}
}

// TestDuplicateProposedDate checks the (invitation, date) unique constraint.
func TestDuplicateProposedDate(t *testing.T, ctx context.Context, s scheduling.Store) {
	inv := NewInvitation(uuid.New(), uuid.New(), "2030-04-01", "2030-04-01")
	err := s.InTx(ctx, func(tx scheduling.Tx) error {
		return tx.CreateInvitation(ctx, inv)
	})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if _, err := s.GetInvitation(ctx, inv.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("invitation should not survive a failed insert, got %v", err)
	}
}

// TestBusydayUnique checks the (user, date) unique constraint and batch atomicity.
func TestBusydayUnique(t *testing.T, ctx context.Context, s scheduling.Store) {
	alice, bob := uuid.New(), uuid.New()
	insert := func(days ...scheduling.Busyday) error {
		return s.InTx(ctx, func(tx scheduling.Tx) error {
			return tx.InsertBusydays(ctx, days)
		})
	}

	if err := insert(NewBusyday(alice, "2030-05-01")); err != nil {
		t.Fatalf("InsertBusydays failed: %v", err)
	}
	if err := insert(NewBusyday(alice, "2030-05-01")); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for same user and day, got %v", err)
	}

	// bob's row must not land when alice's collides.
	err := insert(NewBusyday(bob, "2030-05-01"), NewBusyday(alice, "2030-05-01"))
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	day := scheduling.MustParseDate("2030-05-01")
	got, err := s.ListBusydays(ctx, bob, day, day)
	if err != nil {
		t.Fatalf("ListBusydays failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no busyday for bob, got %d", len(got))
	}

	var exists bool
	_ = s.InTx(ctx, func(tx scheduling.Tx) error {
		var err error
		exists, err = tx.BusydayExists(ctx, alice, day)
		return err
	})
	if !exists {
		t.Error("expected BusydayExists for alice")
	}
}

// TestConditionalUpdates checks that resolved invitations cannot transition again.
func TestConditionalUpdates(t *testing.T, ctx context.Context, s scheduling.Store) {
	inv := NewInvitation(uuid.New(), uuid.New(), "2030-06-01")
	create(t, ctx, s, inv)
	day := scheduling.MustParseDate("2030-06-01")

	run := func(fn func(tx scheduling.Tx) error) error { return s.InTx(ctx, fn) }

	if err := run(func(tx scheduling.Tx) error { return tx.MarkDeclined(ctx, inv.ID) }); err != nil {
		t.Fatalf("MarkDeclined failed: %v", err)
	}
	if err := run(func(tx scheduling.Tx) error { return tx.MarkDeclined(ctx, inv.ID) }); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second decline: expected ErrNotFound, got %v", err)
	}
	if err := run(func(tx scheduling.Tx) error { return tx.MarkAccepted(ctx, inv.ID, day) }); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("accept after decline: expected ErrNotFound, got %v", err)
	}
	err := run(func(tx scheduling.Tx) error {
		_, err := tx.GetPendingInvitation(ctx, inv.ID)
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetPendingInvitation on declined: expected ErrNotFound, got %v", err)
	}

	got, _ := s.GetInvitation(ctx, inv.ID)
	if got.Status != scheduling.StatusDeclined || got.SelectedDate != nil {
		t.Errorf("expected declined without date, got %s %v", got.Status, got.SelectedDate)
	}
}

// TestListOrdering checks newest-first ordering and status filtering.
func TestListOrdering(t *testing.T, ctx context.Context, s scheduling.Store) {
	alice, bob := uuid.New(), uuid.New()
	base := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := range 3 {
		inv := NewInvitation(alice, bob, "2030-07-01")
		inv.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		create(t, ctx, s, inv)
		ids = append(ids, inv.ID)
	}

	got, err := s.ListInvitations(ctx, scheduling.ListFilter{UserID: alice, Role: scheduling.RoleSender, Status: scheduling.StatusPending})
	if err != nil {
		t.Fatalf("ListInvitations failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 invitations, got %d", len(got))
	}
	for i, inv := range got {
		if want := ids[len(ids)-1-i]; inv.ID != want {
			t.Errorf("position %d: got %s, want %s", i, inv.ID, want)
		}
		if !inv.CreatedAt.Equal(base.Add(time.Duration(2-i) * time.Hour)) {
			t.Errorf("position %d: created_at %s did not round-trip", i, inv.CreatedAt)
		}
	}

	declined, _ := s.ListInvitations(ctx, scheduling.ListFilter{UserID: alice, Role: scheduling.RoleSender, Status: scheduling.StatusDeclined})
	if len(declined) != 0 {
		t.Errorf("expected no declined invitations, got %d", len(declined))
	}
}

// TestDeleteCascades checks that deleting an invitation removes its dates.
func TestDeleteCascades(t *testing.T, ctx context.Context, s scheduling.Store) {
	alice := uuid.New()
	inv := NewInvitation(alice, uuid.New(), "2030-08-01", "2030-08-02")
	create(t, ctx, s, inv)

	del := func() error {
		return s.InTx(ctx, func(tx scheduling.Tx) error { return tx.DeleteInvitation(ctx, inv.ID) })
	}
	if err := del(); err != nil {
		t.Fatalf("DeleteInvitation failed: %v", err)
	}
	if _, err := s.GetInvitation(ctx, inv.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	props, err := s.ListPendingProposals(ctx, alice,
		scheduling.MustParseDate("2030-08-01"), scheduling.MustParseDate("2030-08-31"))
	if err != nil {
		t.Fatalf("ListPendingProposals failed: %v", err)
	}
	if len(props) != 0 {
		t.Errorf("expected proposed dates to be deleted, got %d", len(props))
	}
	if err := del(); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}

	// Re-using the same invitation id proves no orphaned date rows remain.
	create(t, ctx, s, inv)
}

// TestRollback checks that a failing callback leaves no writes behind.
func TestRollback(t *testing.T, ctx context.Context, s scheduling.Store) {
	alice := uuid.New()
	inv := NewInvitation(alice, uuid.New(), "2030-09-01")
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx scheduling.Tx) error {
		if err := tx.CreateInvitation(ctx, inv); err != nil {
			return err
		}
		if err := tx.InsertBusydays(ctx, []scheduling.Busyday{NewBusyday(alice, "2030-09-01")}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if _, err := s.GetInvitation(ctx, inv.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("invitation survived rollback: %v", err)
	}
	day := scheduling.MustParseDate("2030-09-01")
	if got, _ := s.ListBusydays(ctx, alice, day, day); len(got) != 0 {
		t.Errorf("busyday survived rollback: %d rows", len(got))
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := s.InTx(cancelled, func(tx scheduling.Tx) error {
		return tx.CreateInvitation(cancelled, inv)
	}); err == nil {
		t.Error("expected error for cancelled context")
	}
	if _, err := s.GetInvitation(ctx, inv.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("invitation written under cancelled context: %v", err)
	}
}

// TestFriendships checks upsert semantics and symmetric lookup.
func TestFriendships(t *testing.T, ctx context.Context, s scheduling.Store) {
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	f := &scheduling.Friendship{UserID: alice, FriendID: bob, Status: scheduling.FriendshipPending}
	if err := s.SaveFriendship(ctx, f); err != nil {
		t.Fatalf("SaveFriendship failed: %v", err)
	}
	if ok, _ := s.AreFriends(ctx, alice, bob); ok {
		t.Error("pending friendship must not count")
	}

	f.Status = scheduling.FriendshipAccepted
	if err := s.SaveFriendship(ctx, f); err != nil {
		t.Fatalf("SaveFriendship update failed: %v", err)
	}
	for _, pair := range [][2]uuid.UUID{{alice, bob}, {bob, alice}} {
		ok, err := s.AreFriends(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("AreFriends failed: %v", err)
		}
		if !ok {
			t.Errorf("expected %s and %s to be friends", pair[0], pair[1])
		}
	}
	if ok, _ := s.AreFriends(ctx, alice, carol); ok {
		t.Error("alice and carol are not friends")
	}

	var inTx bool
	_ = s.InTx(ctx, func(tx scheduling.Tx) error {
		var err error
		inTx, err = tx.AreFriends(ctx, bob, alice)
		return err
	})
	if !inTx {
		t.Error("expected friendship to be visible inside a transaction")
	}
}

// TestPendingProposals checks range filtering, participant matching and ordering.
func TestPendingProposals(t *testing.T, ctx context.Context, s scheduling.Store) {
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	out := NewInvitation(alice, bob, "2030-10-05", "2030-10-01", "2030-11-01")
	in := NewInvitation(carol, alice, "2030-10-03")
	other := NewInvitation(bob, carol, "2030-10-02")
	resolved := NewInvitation(alice, carol, "2030-10-04")
	for _, inv := range []*scheduling.Invitation{out, in, other, resolved} {
		create(t, ctx, s, inv)
	}
	if err := s.InTx(ctx, func(tx scheduling.Tx) error { return tx.MarkDeclined(ctx, resolved.ID) }); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListPendingProposals(ctx, alice,
		scheduling.MustParseDate("2030-10-01"), scheduling.MustParseDate("2030-10-31"))
	if err != nil {
		t.Fatalf("ListPendingProposals failed: %v", err)
	}
	want := []struct {
		id   uuid.UUID
		date string
	}{
		{out.ID, "2030-10-01"},
		{in.ID, "2030-10-03"},
		{out.ID, "2030-10-05"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d proposals, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].InvitationID != w.id || got[i].Date.String() != w.date {
			t.Errorf("proposal %d: got %s %s, want %s %s", i, got[i].InvitationID, got[i].Date, w.id, w.date)
		}
	}
	if got[1].FromUserID != carol || got[1].ToUserID != alice {
		t.Errorf("expected participants carol -> alice, got %s -> %s", got[1].FromUserID, got[1].ToUserID)
	}
}
