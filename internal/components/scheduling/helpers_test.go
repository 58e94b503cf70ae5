package scheduling_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
	"github.com/MahdiBaghbani/busyday-go/internal/store/memory"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fixture struct {
	store  *memory.Driver
	engine *scheduling.Engine
	agg    *scheduling.Aggregator
	alice  uuid.UUID
	bob    uuid.UUID
	carol  uuid.UUID
	dave   uuid.UUID // no friends
}

// newFixture wires an engine over a memory store where alice, bob and carol
// are mutual friends.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		alice: uuid.New(),
		bob:   uuid.New(),
		carol: uuid.New(),
		dave:  uuid.New(),
	}
	f.engine = scheduling.NewEngine(f.store, nil, scheduling.WithClock(clock))
	f.agg = scheduling.NewAggregator(f.store, nil, nil, scheduling.WithClock(clock))

	ctx := context.Background()
	for _, pair := range [][2]uuid.UUID{{f.alice, f.bob}, {f.bob, f.carol}, {f.carol, f.alice}} {
		err := f.store.SaveFriendship(ctx, &scheduling.Friendship{
			UserID: pair[0], FriendID: pair[1], Status: scheduling.FriendshipAccepted,
		})
		if err != nil {
			t.Fatalf("SaveFriendship: %v", err)
		}
	}
	return f
}

func (f *fixture) invite(t *testing.T, from, to uuid.UUID, dates ...string) uuid.UUID {
	t.Helper()
	id, err := f.engine.Create(context.Background(), from, to, dates)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func (f *fixture) busy(t *testing.T, user uuid.UUID, from, to string) []scheduling.Busyday {
	t.Helper()
	days, err := f.store.ListBusydays(context.Background(), user,
		scheduling.MustParseDate(from), scheduling.MustParseDate(to))
	if err != nil {
		t.Fatalf("ListBusydays: %v", err)
	}
	return days
}

func wantKind(t *testing.T, err error, kind scheduling.Kind, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var se *scheduling.Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *scheduling.Error, got %T: %v", err, err)
	}
	if se.Kind != kind {
		t.Errorf("kind = %s, want %s (%v)", se.Kind, kind, err)
	}
	if reason != "" && se.Reason != reason {
		t.Errorf("reason = %s, want %s", se.Reason, reason)
	}
}
