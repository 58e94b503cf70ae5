// Package mysql implements a MySQL persistence driver using GORM.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"

	"github.com/MahdiBaghbani/busyday-go/internal/store"
	"github.com/MahdiBaghbani/busyday-go/internal/store/gormstore"
)

// errDupEntry is ER_DUP_ENTRY.
const errDupEntry = 1062

func init() {
	store.Register("mysql", NewDriver)
}

// Driver implements store.Driver against a MySQL 8 server.
type Driver struct {
	gormstore.Store
	dsn *gomysql.Config
}

// NewDriver validates the connection settings. No connection is made until Init.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	mc, err := Config(cfg.MySQL)
	if err != nil {
		return nil, err
	}
	return &Driver{
		Store: gormstore.Store{Dialect: gormstore.Dialect{
			Name:        "mysql",
			IsDuplicate: isDuplicate,
			LockRows:    true,
		}},
		dsn: mc,
	}, nil
}

// Config converts store settings into a driver config.
func Config(c store.MySQLConfig) (*gomysql.Config, error) {
	if c.Addr == "" {
		return nil, fmt.Errorf("store.mysql.addr is required for mysql driver")
	}
	if c.Database == "" {
		return nil, fmt.Errorf("store.mysql.database is required for mysql driver")
	}
	mc := gomysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = c.Addr
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Timeout = 5 * time.Second
	return mc, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "mysql"
}

// Init connects and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	return d.Store.Open(ctx, gormmysql.New(gormmysql.Config{DSNConfig: d.dsn}))
}

func isDuplicate(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}

var _ store.Driver = (*Driver)(nil)
