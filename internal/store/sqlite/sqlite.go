// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"

	"github.com/MahdiBaghbani/busyday-go/internal/store"
	"github.com/MahdiBaghbani/busyday-go/internal/store/gormstore"
)

// FileName is the database file created under the data directory.
const FileName = "busyday.db"

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements the store.Driver interface using SQLite via GORM.
type Driver struct {
	gormstore.Store
	dataDir string
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		Store: gormstore.Store{Dialect: gormstore.Dialect{
			Name:        "sqlite",
			IsDuplicate: isDuplicate,
		}},
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init opens the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	return d.Store.Open(ctx, sqlite.Open(DSN(d.dataDir)))
}

// DSN builds the connection string. Transactions start with BEGIN IMMEDIATE
// so concurrent writers queue on the database lock instead of failing at commit.
func DSN(dataDir string) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	return "file:" + filepath.Join(dataDir, FileName) + "?" + q.Encode()
}

func isDuplicate(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// Compile-time interface checks
var _ store.Driver = (*Driver)(nil)
