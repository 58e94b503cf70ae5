// Package gormstore implements scheduling.Store on top of GORM. The sqlite
// and mysql drivers embed Store and differ only in their Dialect.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
	"github.com/MahdiBaghbani/busyday-go/internal/store"
)

// Dialect captures what differs between backends.
type Dialect struct {
	Name string

	// IsDuplicate reports a unique constraint violation in a raw driver error.
	IsDuplicate func(error) bool

	// LockRows adds SELECT ... FOR UPDATE to pending-invitation reads.
	LockRows bool
}

// Store is a GORM-backed scheduling store. The zero value with a Dialect is
// usable after Open.
type Store struct {
	Dialect Dialect
	db      *gorm.DB
}

// Open connects through dialector and migrates the schema.
func (s *Store) Open(ctx context.Context, dialector gorm.Dialector) error {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	// AutoMigrate creates/updates tables based on model structs
	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for driver-specific checks.
func (s *Store) DB() *gorm.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.db = nil
	return sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return store.ErrClosed
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	if s.db == nil {
		return nil, store.ErrClosed
	}
	return s.db.WithContext(ctx), nil
}

// mapErr converts GORM and driver errors to store sentinels.
func (s *Store) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrAlreadyExists
	case s.Dialect.IsDuplicate != nil && s.Dialect.IsDuplicate(err):
		return store.ErrAlreadyExists
	default:
		return fmt.Errorf("%s: %w", s.Dialect.Name, err)
	}
}

func datesAscending(db *gorm.DB) *gorm.DB {
	return db.Order("date ASC")
}

// InTx runs fn in a database transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx scheduling.Tx) error) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	err = db.Transaction(func(gtx *gorm.DB) error {
		return fn(&tx{db: gtx, s: s})
	})
	var se *scheduling.Error
	if errors.As(err, &se) || errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrAlreadyExists) {
		return err
	}
	return s.mapErr(err)
}

// GetInvitation loads an invitation and its dates.
func (s *Store) GetInvitation(ctx context.Context, id uuid.UUID) (*scheduling.Invitation, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var row InvitationRow
	if err := db.Preload("Dates", datesAscending).First(&row, "id = ?", id.String()).Error; err != nil {
		return nil, s.mapErr(err)
	}
	return rowToInvitation(&row)
}

// ListInvitations returns matching invitations, newest first.
func (s *Store) ListInvitations(ctx context.Context, f scheduling.ListFilter) ([]*scheduling.Invitation, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	col := "to_user_id"
	if f.Role == scheduling.RoleSender {
		col = "from_user_id"
	}
	var rows []InvitationRow
	err = db.Preload("Dates", datesAscending).
		Where(col+" = ? AND status = ?", f.UserID.String(), string(f.Status)).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, s.mapErr(err)
	}
	out := make([]*scheduling.Invitation, 0, len(rows))
	for i := range rows {
		inv, err := rowToInvitation(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// ListBusydays returns the user's busydays in [from, to], ascending.
func (s *Store) ListBusydays(ctx context.Context, userID uuid.UUID, from, to scheduling.Date) ([]scheduling.Busyday, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []BusydayRow
	err = db.Where("user_id = ? AND date >= ? AND date <= ?", userID.String(), from.String(), to.String()).
		Order("date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, s.mapErr(err)
	}
	out := make([]scheduling.Busyday, 0, len(rows))
	for _, r := range rows {
		b, err := rowToBusyday(r)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

type proposalRow struct {
	InvitationID string
	FromUserID   string
	ToUserID     string
	Date         string
}

// ListPendingProposals joins proposed dates with their pending invitations.
func (s *Store) ListPendingProposals(ctx context.Context, userID uuid.UUID, from, to scheduling.Date) ([]scheduling.PendingProposal, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	uid := userID.String()
	var rows []proposalRow
	err = db.Table("invitation_dates AS d").
		Select("d.invitation_id, i.from_user_id, i.to_user_id, d.date").
		Joins("JOIN invitations AS i ON i.id = d.invitation_id").
		Where("i.status = ? AND (i.from_user_id = ? OR i.to_user_id = ?)", string(scheduling.StatusPending), uid, uid).
		Where("d.date >= ? AND d.date <= ?", from.String(), to.String()).
		Order("d.date ASC, d.invitation_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, s.mapErr(err)
	}
	out := make([]scheduling.PendingProposal, 0, len(rows))
	for _, r := range rows {
		var p scheduling.PendingProposal
		if p.InvitationID, err = uuid.Parse(r.InvitationID); err != nil {
			return nil, err
		}
		if p.FromUserID, err = uuid.Parse(r.FromUserID); err != nil {
			return nil, err
		}
		if p.ToUserID, err = uuid.Parse(r.ToUserID); err != nil {
			return nil, err
		}
		if p.Date, err = scheduling.ParseDate(r.Date); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// AreFriends reports an accepted friendship in either orientation.
func (s *Store) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	return areFriends(db, s, a, b)
}

func areFriends(db *gorm.DB, s *Store, a, b uuid.UUID) (bool, error) {
	var n int64
	err := db.Model(&FriendshipRow{}).
		Where("status = ?", string(scheduling.FriendshipAccepted)).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			a.String(), b.String(), b.String(), a.String()).
		Count(&n).Error
	if err != nil {
		return false, s.mapErr(err)
	}
	return n > 0, nil
}

// SaveFriendship upserts the (UserID, FriendID) row.
func (s *Store) SaveFriendship(ctx context.Context, f *scheduling.Friendship) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.Must(uuid.NewV7())
	}
	row := FriendshipRow{
		ID:       f.ID.String(),
		UserID:   f.UserID.String(),
		FriendID: f.FriendID.String(),
		Status:   string(f.Status),
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "friend_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status"}),
	}).Create(&row).Error
	return s.mapErr(err)
}

var _ scheduling.Store = (*Store)(nil)
