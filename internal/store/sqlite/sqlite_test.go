package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
	"github.com/MahdiBaghbani/busyday-go/internal/store"
	"github.com/MahdiBaghbani/busyday-go/internal/store/gormstore"
	"github.com/MahdiBaghbani/busyday-go/internal/store/sqlite"
	"github.com/MahdiBaghbani/busyday-go/internal/store/testutil"
)

func TestSQLiteDriver(t *testing.T) {
	tempDir := t.TempDir()

	testutil.RunDriverTests(t, "sqlite", &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: tempDir,
	})

	if _, err := os.Stat(filepath.Join(tempDir, sqlite.FileName)); os.IsNotExist(err) {
		t.Errorf("%s not created", sqlite.FileName)
	}
}

func TestSQLiteDriverRequiresDataDir(t *testing.T) {
	if _, err := store.New(&store.DriverConfig{Driver: "sqlite"}); err == nil {
		t.Fatal("expected error without data_dir")
	}
}

func TestDSN(t *testing.T) {
	dsn := sqlite.DSN("/var/lib/busyday")
	for _, want := range []string{"_txlock=immediate", "_busy_timeout=5000", "_foreign_keys=on", "busyday.db"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q missing %q", dsn, want)
		}
	}
}

func TestSQLiteDriverSurvivesRestart(t *testing.T) {
	tempDir := t.TempDir()
	ctx := context.Background()
	cfg := &store.DriverConfig{Driver: "sqlite", DataDir: tempDir}

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := driver.Init(ctx); err != nil {
		t.Fatal(err)
	}
	s := driver.(scheduling.Store)

	alice, bob := uuid.New(), uuid.New()
	inv := testutil.NewInvitation(alice, bob, "2030-01-10", "2030-01-11")
	if err := s.InTx(ctx, func(tx scheduling.Tx) error {
		return tx.CreateInvitation(ctx, inv)
	}); err != nil {
		t.Fatal(err)
	}
	driver.Close()

	driver2, err := store.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := driver2.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer driver2.Close()

	got, err := driver2.(scheduling.Store).GetInvitation(ctx, inv.ID)
	if err != nil {
		t.Fatalf("invitation not found after restart: %v", err)
	}
	if len(got.Dates) != 2 {
		t.Errorf("expected 2 dates after restart, got %d", len(got.Dates))
	}
}

func TestInsertBusydaysWritesInUserOrder(t *testing.T) {
	ctx := context.Background()
	driver, err := store.New(&store.DriverConfig{Driver: "sqlite", DataDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer driver.Close()
	if err := driver.Init(ctx); err != nil {
		t.Fatal(err)
	}

	var written []string
	err = driver.(*sqlite.Driver).DB().Callback().Create().Before("gorm:create").
		Register("test:record_busydays", func(db *gorm.DB) {
			if rows, ok := db.Statement.Dest.(*[]gormstore.BusydayRow); ok {
				for _, r := range *rows {
					written = append(written, r.UserID+"/"+r.Date)
				}
			}
		})
	if err != nil {
		t.Fatal(err)
	}

	low := uuid.MustParse("10000000-0000-7000-8000-000000000000")
	high := uuid.MustParse("f0000000-0000-7000-8000-000000000000")
	days := []scheduling.Busyday{
		testutil.NewBusyday(high, "2030-02-01"),
		testutil.NewBusyday(low, "2030-02-02"),
		testutil.NewBusyday(low, "2030-02-01"),
	}
	s := driver.(scheduling.Store)
	if err := s.InTx(ctx, func(tx scheduling.Tx) error {
		return tx.InsertBusydays(ctx, days)
	}); err != nil {
		t.Fatalf("InsertBusydays: %v", err)
	}

	want := []string{
		low.String() + "/2030-02-01",
		low.String() + "/2030-02-02",
		high.String() + "/2030-02-01",
	}
	if strings.Join(written, ",") != strings.Join(want, ",") {
		t.Errorf("insert order = %v, want %v", written, want)
	}
	if len(days) != 3 || days[0].UserID != high {
		t.Error("caller's slice was reordered")
	}
}
