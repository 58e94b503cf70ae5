package store_test

import (
	"context"
	"os"
	"slices"
	"testing"

	"github.com/MahdiBaghbani/busyday-go/internal/store"
	_ "github.com/MahdiBaghbani/busyday-go/internal/store/memory"
	_ "github.com/MahdiBaghbani/busyday-go/internal/store/mysql"
	_ "github.com/MahdiBaghbani/busyday-go/internal/store/sqlite"
	"github.com/MahdiBaghbani/busyday-go/internal/store/testutil"
)

func TestMemoryDriver(t *testing.T) {
	testutil.RunDriverTests(t, "memory", &store.DriverConfig{Driver: "memory"})
}

func TestSQLiteDriver(t *testing.T) {
	testutil.RunDriverTests(t, "sqlite", &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: t.TempDir(),
	})
}

func TestUnknownDriver(t *testing.T) {
	if _, err := store.New(&store.DriverConfig{Driver: "postgres"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestAvailableDrivers(t *testing.T) {
	got := store.AvailableDrivers()
	for _, want := range []string{"memory", "mysql", "sqlite"} {
		if !slices.Contains(got, want) {
			t.Errorf("driver %q not registered: %v", want, got)
		}
	}
	if !slices.IsSorted(got) {
		t.Errorf("expected sorted driver names, got %v", got)
	}
}

func TestOpen_InitFailureCloses(t *testing.T) {
	dir := t.TempDir()
	blocker := dir + "/not-a-dir"
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := store.Open(context.Background(), &store.DriverConfig{Driver: "sqlite", DataDir: blocker})
	if err == nil {
		t.Fatal("expected init error when data dir is a file")
	}
}

func TestOpen_Memory(t *testing.T) {
	d, err := store.Open(context.Background(), &store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()
	if d.Name() != "memory" {
		t.Errorf("Name() = %q", d.Name())
	}
}
