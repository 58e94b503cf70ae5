package gormstore

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
	"github.com/MahdiBaghbani/busyday-go/internal/store"
)

type tx struct {
	db *gorm.DB
	s  *Store
}

func (t *tx) AreFriends(_ context.Context, a, b uuid.UUID) (bool, error) {
	return areFriends(t.db, t.s, a, b)
}

func (t *tx) CreateInvitation(_ context.Context, inv *scheduling.Invitation) error {
	row := invitationToRow(inv)
	dates := row.Dates
	row.Dates = nil

	// Dates are inserted explicitly: association saving would upsert with
	// ON CONFLICT DO NOTHING and hide duplicates.
	if err := t.db.Omit(clause.Associations).Create(row).Error; err != nil {
		return t.s.mapErr(err)
	}
	if len(dates) == 0 {
		return nil
	}
	return t.s.mapErr(t.db.Create(&dates).Error)
}

func (t *tx) GetPendingInvitation(_ context.Context, id uuid.UUID) (*scheduling.Invitation, error) {
	q := t.db
	if t.s.Dialect.LockRows {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row InvitationRow
	err := q.Preload("Dates", datesAscending).
		First(&row, "id = ? AND status = ?", id.String(), string(scheduling.StatusPending)).Error
	if err != nil {
		return nil, t.s.mapErr(err)
	}
	return rowToInvitation(&row)
}

func (t *tx) BusydayExists(_ context.Context, userID uuid.UUID, d scheduling.Date) (bool, error) {
	var n int64
	err := t.db.Model(&BusydayRow{}).
		Where("user_id = ? AND date = ?", userID.String(), d.String()).
		Count(&n).Error
	if err != nil {
		return false, t.s.mapErr(err)
	}
	return n > 0, nil
}

func (t *tx) MarkAccepted(_ context.Context, id uuid.UUID, d scheduling.Date) error {
	res := t.db.Model(&InvitationRow{}).
		Where("id = ? AND status = ?", id.String(), string(scheduling.StatusPending)).
		Updates(map[string]any{
			"status":        string(scheduling.StatusAccepted),
			"selected_date": d.String(),
		})
	return t.conditional(res)
}

func (t *tx) MarkDeclined(_ context.Context, id uuid.UUID) error {
	res := t.db.Model(&InvitationRow{}).
		Where("id = ? AND status = ?", id.String(), string(scheduling.StatusPending)).
		Update("status", string(scheduling.StatusDeclined))
	return t.conditional(res)
}

func (t *tx) InsertBusydays(_ context.Context, days []scheduling.Busyday) error {
	if len(days) == 0 {
		return nil
	}
	rows := make([]BusydayRow, 0, len(days))
	for _, b := range days {
		rows = append(rows, busydayToRow(b))
	}
	// Rows go in (user_id, date) order so concurrent inserts lock index
	// entries in the same sequence.
	slices.SortFunc(rows, func(a, b BusydayRow) int {
		if c := strings.Compare(a.UserID, b.UserID); c != 0 {
			return c
		}
		return strings.Compare(a.Date, b.Date)
	})
	return t.s.mapErr(t.db.Create(&rows).Error)
}

func (t *tx) DeleteInvitation(_ context.Context, id uuid.UUID) error {
	if err := t.db.Where("invitation_id = ?", id.String()).Delete(&InvitationDateRow{}).Error; err != nil {
		return t.s.mapErr(err)
	}
	return t.conditional(t.db.Where("id = ?", id.String()).Delete(&InvitationRow{}))
}

// conditional treats a write that matched no row as store.ErrNotFound.
func (t *tx) conditional(res *gorm.DB) error {
	if res.Error != nil {
		return t.s.mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ scheduling.Tx = (*tx)(nil)
