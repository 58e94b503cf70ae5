// Package calendar serves calendar views over the busyday ledger.
package calendar

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MahdiBaghbani/busyday-go/internal/components/api"
	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/logutil"
)

// Aggregator is the subset of scheduling.Aggregator the handlers use.
type Aggregator interface {
	GetCalendar(ctx context.Context, target, caller uuid.UUID, from, to string) (*scheduling.Calendar, error)
	MyBusydays(ctx context.Context, caller uuid.UUID, from, to string) ([]scheduling.Busyday, error)
}

// BusydayView is the JSON shape of a busyday.
type BusydayView struct {
	ID      uuid.UUID       `json:"id"`
	UserID  uuid.UUID       `json:"user_id"`
	Date    scheduling.Date `json:"date"`
	EventID *uuid.UUID      `json:"event_id"`
}

// PendingInviteView is the JSON shape of a pending proposal.
type PendingInviteView struct {
	InvitationID uuid.UUID            `json:"invitation_id"`
	Date         scheduling.Date      `json:"date"`
	Direction    scheduling.Direction `json:"direction"`
}

// CalendarView is the JSON shape of GET /api/users/{id}/calendar.
type CalendarView struct {
	From           scheduling.Date     `json:"from"`
	To             scheduling.Date     `json:"to"`
	BusyDays       []BusydayView       `json:"busy_days"`
	PendingInvites []PendingInviteView `json:"pending_invites"`
	PastEvents     []scheduling.Date   `json:"past_events"`
}

func busydayViews(days []scheduling.Busyday) []BusydayView {
	out := make([]BusydayView, 0, len(days))
	for _, b := range days {
		out = append(out, BusydayView{ID: b.ID, UserID: b.UserID, Date: b.Date, EventID: b.EventID})
	}
	return out
}

// Handler serves the calendar endpoints.
type Handler struct {
	agg         Aggregator
	currentUser func(context.Context) (uuid.UUID, error)
	log         *slog.Logger
}

// NewHandler creates a new calendar handler.
func NewHandler(agg Aggregator, currentUser func(context.Context) (uuid.UUID, error), log *slog.Logger) *Handler {
	return &Handler{
		agg:         agg,
		currentUser: currentUser,
		log:         logutil.NoopIfNil(log),
	}
}

// Routes mounts the handlers on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/users/me/busydays", h.HandleMyBusydays)
	r.Get("/users/{id}/calendar", h.HandleCalendar)
	r.Get("/users/{id}/calendar.ics", h.HandleCalendarICS)
}

// load resolves caller and target, then builds the calendar. On failure the
// response has been written.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*scheduling.Calendar, bool) {
	caller, err := h.currentUser(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return nil, false
	}
	target, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidField, "invalid user id")
		return nil, false
	}

	q := r.URL.Query()
	cal, err := h.agg.GetCalendar(r.Context(), target, caller, q.Get("from"), q.Get("to"))
	if err != nil {
		api.WriteSchedulingError(w, err)
		return nil, false
	}
	return cal, true
}

// HandleCalendar handles GET /api/users/{id}/calendar?from=&to=.
func (h *Handler) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.load(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	busy, err := cal.BusyDays(ctx)
	if err != nil {
		api.WriteSchedulingError(w, err)
		return
	}
	pending, err := cal.PendingInvites(ctx)
	if err != nil {
		api.WriteSchedulingError(w, err)
		return
	}
	past, err := cal.PastEvents(ctx)
	if err != nil {
		api.WriteSchedulingError(w, err)
		return
	}

	view := CalendarView{
		From:           cal.Range.From,
		To:             cal.Range.To,
		BusyDays:       busydayViews(busy),
		PendingInvites: make([]PendingInviteView, 0, len(pending)),
		PastEvents:     past,
	}
	for _, p := range pending {
		view.PendingInvites = append(view.PendingInvites, PendingInviteView{
			InvitationID: p.InvitationID,
			Date:         p.Date,
			Direction:    p.Direction,
		})
	}
	api.WriteJSON(w, http.StatusOK, view)
}

// HandleCalendarICS handles GET /api/users/{id}/calendar.ics?from=&to=.
func (h *Handler) HandleCalendarICS(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.load(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	busy, err := cal.BusyDays(ctx)
	if err != nil {
		api.WriteSchedulingError(w, err)
		return
	}
	pending, err := cal.PendingInvites(ctx)
	if err != nil {
		api.WriteSchedulingError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := WriteICS(&buf, cal, busy, pending); err != nil {
		h.log.Error("failed to encode calendar", "target_id", cal.Owner.String(), "error", err)
		api.WriteInternalError(w, "internal error")
		return
	}

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+cal.Owner.String()+`.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// HandleMyBusydays handles GET /api/users/me/busydays?from=&to=.
func (h *Handler) HandleMyBusydays(w http.ResponseWriter, r *http.Request) {
	caller, err := h.currentUser(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}
	q := r.URL.Query()
	days, err := h.agg.MyBusydays(r.Context(), caller, q.Get("from"), q.Get("to"))
	if err != nil {
		api.WriteSchedulingError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, busydayViews(days))
}
