package gormstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
)

// Ids are stored as canonical UUID strings and days as YYYY-MM-DD, which
// sorts lexicographically in date order on every backend.

// InvitationRow is the invitations table.
type InvitationRow struct {
	ID           string  `gorm:"primaryKey;size:36"`
	FromUserID   string  `gorm:"size:36;not null;index:idx_invitations_from_status,priority:1"`
	ToUserID     string  `gorm:"size:36;not null;index:idx_invitations_to_status,priority:1"`
	Status       string  `gorm:"size:16;not null;index:idx_invitations_from_status,priority:2;index:idx_invitations_to_status,priority:2;check:chk_invitations_status,status IN ('pending','accepted','declined')"`
	SelectedDate *string `gorm:"size:10;check:chk_invitations_selected_date,(status = 'accepted') = (selected_date IS NOT NULL)"`
	CreatedAt    time.Time
	Dates        []InvitationDateRow `gorm:"foreignKey:InvitationID;constraint:OnDelete:CASCADE"`
}

func (InvitationRow) TableName() string { return "invitations" }

// InvitationDateRow is the invitation_dates table.
type InvitationDateRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	InvitationID string `gorm:"size:36;not null;uniqueIndex:idx_invitation_dates_unique,priority:1"`
	Date         string `gorm:"size:10;not null;uniqueIndex:idx_invitation_dates_unique,priority:2;index"`
}

func (InvitationDateRow) TableName() string { return "invitation_dates" }

// BusydayRow is the busydays table.
type BusydayRow struct {
	ID      string  `gorm:"primaryKey;size:36"`
	UserID  string  `gorm:"size:36;not null;uniqueIndex:idx_busydays_user_date,priority:1"`
	Date    string  `gorm:"size:10;not null;uniqueIndex:idx_busydays_user_date,priority:2"`
	EventID *string `gorm:"size:36"`
}

func (BusydayRow) TableName() string { return "busydays" }

// FriendshipRow is the friendships table.
type FriendshipRow struct {
	ID       string `gorm:"primaryKey;size:36"`
	UserID   string `gorm:"size:36;not null;uniqueIndex:idx_friendships_pair,priority:1"`
	FriendID string `gorm:"size:36;not null;uniqueIndex:idx_friendships_pair,priority:2"`
	Status   string `gorm:"size:16;not null"`
}

func (FriendshipRow) TableName() string { return "friendships" }

// Models lists every table for AutoMigrate, parents first.
func Models() []any {
	return []any{&InvitationRow{}, &InvitationDateRow{}, &BusydayRow{}, &FriendshipRow{}}
}

func invitationToRow(inv *scheduling.Invitation) *InvitationRow {
	row := &InvitationRow{
		ID:         inv.ID.String(),
		FromUserID: inv.FromUserID.String(),
		ToUserID:   inv.ToUserID.String(),
		Status:     string(inv.Status),
		CreatedAt:  inv.CreatedAt.UTC(),
	}
	if inv.SelectedDate != nil {
		s := inv.SelectedDate.String()
		row.SelectedDate = &s
	}
	for _, pd := range inv.Dates {
		row.Dates = append(row.Dates, InvitationDateRow{
			ID:           pd.ID.String(),
			InvitationID: row.ID,
			Date:         pd.Date.String(),
		})
	}
	return row
}

func rowToInvitation(row *InvitationRow) (*scheduling.Invitation, error) {
	inv := &scheduling.Invitation{
		Status:    scheduling.Status(row.Status),
		CreatedAt: row.CreatedAt.UTC(),
		Dates:     make([]scheduling.ProposedDate, 0, len(row.Dates)),
	}
	var err error
	if inv.ID, err = uuid.Parse(row.ID); err != nil {
		return nil, err
	}
	if inv.FromUserID, err = uuid.Parse(row.FromUserID); err != nil {
		return nil, err
	}
	if inv.ToUserID, err = uuid.Parse(row.ToUserID); err != nil {
		return nil, err
	}
	if row.SelectedDate != nil {
		d, err := scheduling.ParseDate(*row.SelectedDate)
		if err != nil {
			return nil, err
		}
		inv.SelectedDate = &d
	}
	for _, dr := range row.Dates {
		pd := scheduling.ProposedDate{InvitationID: inv.ID}
		if pd.ID, err = uuid.Parse(dr.ID); err != nil {
			return nil, err
		}
		if pd.Date, err = scheduling.ParseDate(dr.Date); err != nil {
			return nil, err
		}
		inv.Dates = append(inv.Dates, pd)
	}
	return inv, nil
}

func busydayToRow(b scheduling.Busyday) BusydayRow {
	row := BusydayRow{ID: b.ID.String(), UserID: b.UserID.String(), Date: b.Date.String()}
	if b.EventID != nil {
		s := b.EventID.String()
		row.EventID = &s
	}
	return row
}

func rowToBusyday(row BusydayRow) (scheduling.Busyday, error) {
	var (
		b   scheduling.Busyday
		err error
	)
	if b.ID, err = uuid.Parse(row.ID); err != nil {
		return b, err
	}
	if b.UserID, err = uuid.Parse(row.UserID); err != nil {
		return b, err
	}
	if b.Date, err = scheduling.ParseDate(row.Date); err != nil {
		return b, err
	}
	if row.EventID != nil {
		id, err := uuid.Parse(*row.EventID)
		if err != nil {
			return b, err
		}
		b.EventID = &id
	}
	return b, nil
}
