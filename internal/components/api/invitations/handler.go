// Package invitations implements the authenticated invitation endpoints.
// Every endpoint acts on behalf of the caller resolved by the injected
// CurrentUser function.
package invitations

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MahdiBaghbani/busyday-go/internal/components/api"
	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/logutil"
)

const maxBodyBytes = 64 << 10

// Scheduler is the subset of scheduling.Engine the handlers use.
type Scheduler interface {
	Create(ctx context.Context, proposer, recipient uuid.UUID, dates []string) (uuid.UUID, error)
	Accept(ctx context.Context, id, acceptor uuid.UUID, date string) (*scheduling.Invitation, error)
	Decline(ctx context.Context, id, caller uuid.UUID) (*scheduling.Invitation, error)
	Cancel(ctx context.Context, id, caller uuid.UUID) error
	Get(ctx context.Context, id, caller uuid.UUID) (*scheduling.Invitation, error)
	ListIncoming(ctx context.Context, caller uuid.UUID, status scheduling.Status) ([]*scheduling.Invitation, error)
	ListOutgoing(ctx context.Context, caller uuid.UUID, status scheduling.Status) ([]*scheduling.Invitation, error)
}

// InvitationView is the JSON shape of an invitation.
type InvitationView struct {
	ID           uuid.UUID          `json:"id"`
	FromUserID   uuid.UUID          `json:"from_user_id"`
	ToUserID     uuid.UUID          `json:"to_user_id"`
	Status       scheduling.Status  `json:"status"`
	SelectedDate *scheduling.Date   `json:"selected_date"`
	CreatedAt    time.Time          `json:"created_at"`
	Dates        []ProposedDateView `json:"dates"`
}

// ProposedDateView is the JSON shape of a proposed date.
type ProposedDateView struct {
	ID           uuid.UUID       `json:"id"`
	InvitationID uuid.UUID       `json:"invitation_id"`
	Date         scheduling.Date `json:"date"`
}

// CreateRequest is the body of POST /api/invitations.
type CreateRequest struct {
	ToUserID string   `json:"to_user_id"`
	Dates    []string `json:"dates"`
}

// CreateResponse is returned by POST /api/invitations.
type CreateResponse struct {
	ID uuid.UUID `json:"id"`
}

// AcceptRequest is the body of POST /api/invitations/{id}/accept.
type AcceptRequest struct {
	SelectedDate string `json:"selected_date"`
}

// NewView converts an invitation to its JSON shape.
func NewView(inv *scheduling.Invitation) InvitationView {
	v := InvitationView{
		ID:           inv.ID,
		FromUserID:   inv.FromUserID,
		ToUserID:     inv.ToUserID,
		Status:       inv.Status,
		SelectedDate: inv.SelectedDate,
		CreatedAt:    inv.CreatedAt.UTC(),
		Dates:        make([]ProposedDateView, 0, len(inv.Dates)),
	}
	for _, d := range inv.Dates {
		v.Dates = append(v.Dates, ProposedDateView{ID: d.ID, InvitationID: d.InvitationID, Date: d.Date})
	}
	return v
}

// Handler serves the invitation endpoints.
type Handler struct {
	scheduler   Scheduler
	currentUser func(context.Context) (uuid.UUID, error)
	log         *slog.Logger
}

// NewHandler creates a new invitations handler.
func NewHandler(s Scheduler, currentUser func(context.Context) (uuid.UUID, error), log *slog.Logger) *Handler {
	return &Handler{
		scheduler:   s,
		currentUser: currentUser,
		log:         logutil.NoopIfNil(log),
	}
}

// caller resolves the authenticated user or writes 401.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := h.currentUser(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return uuid.Nil, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidField, "invalid invitation id")
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid request body")
		return false
	}
	return true
}

// HandleCreate handles POST /api/invitations.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ToUserID == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "to_user_id is required")
		return
	}
	to, err := uuid.Parse(req.ToUserID)
	if err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidField, "to_user_id must be a UUID")
		return
	}

	id, err := h.scheduler.Create(r.Context(), caller, to, req.Dates)
	if err != nil {
		api.WriteSchedulingError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, CreateResponse{ID: id})
}

// HandleListIncoming handles GET /api/invitations/incoming?status=.
func (h *Handler) HandleListIncoming(w http.ResponseWriter, r *http.Request) {
	h.handleList(w, r, h.scheduler.ListIncoming)
}

// HandleListOutgoing handles GET /api/invitations/outgoing?status=.
func (h *Handler) HandleListOutgoing(w http.ResponseWriter, r *http.Request) {
	h.handleList(w, r, h.scheduler.ListOutgoing)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request,
	list func(context.Context, uuid.UUID, scheduling.Status) ([]*scheduling.Invitation, error)) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	status, err := scheduling.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		api.WriteSchedulingError(w, err)
		return
	}

	result, err := list(r.Context(), caller, status)
	if err != nil {
		api.WriteSchedulingError(w, err)
		return
	}
	views := make([]InvitationView, 0, len(result))
	for _, inv := range result {
		views = append(views, NewView(inv))
	}
	api.WriteJSON(w, http.StatusOK, views)
}

// HandleGet handles GET /api/invitations/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.scheduler.Get(r.Context(), id, caller)
	if err != nil {
		api.WriteSchedulingError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, NewView(inv))
}

// HandleAccept handles POST /api/invitations/{id}/accept.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req AcceptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SelectedDate == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "selected_date is required")
		return
	}

	inv, err := h.scheduler.Accept(r.Context(), id, caller, req.SelectedDate)
	if err != nil {
		api.WriteSchedulingError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, NewView(inv))
}

// HandleDecline handles POST /api/invitations/{id}/decline.
func (h *Handler) HandleDecline(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.scheduler.Decline(r.Context(), id, caller)
	if err != nil {
		api.WriteSchedulingError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, NewView(inv))
}

// HandleCancel handles POST /api/invitations/{id}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.scheduler.Cancel(r.Context(), id, caller); err != nil {
		api.WriteSchedulingError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Routes mounts the handlers on r. wrap decorates the mutating endpoints
// (rate limiting); it may be nil.
func (h *Handler) Routes(r chi.Router, wrap func(http.Handler) http.Handler) {
	if wrap == nil {
		wrap = func(next http.Handler) http.Handler { return next }
	}
	mutate := func(fn http.HandlerFunc) http.Handler { return wrap(fn) }

	r.Method(http.MethodPost, "/invitations", mutate(h.HandleCreate))
	r.Get("/invitations/incoming", h.HandleListIncoming)
	r.Get("/invitations/outgoing", h.HandleListOutgoing)
	r.Get("/invitations/{id}", h.HandleGet)
	r.Method(http.MethodPost, "/invitations/{id}/accept", mutate(h.HandleAccept))
	r.Method(http.MethodPost, "/invitations/{id}/decline", mutate(h.HandleDecline))
	r.Method(http.MethodPost, "/invitations/{id}/cancel", mutate(h.HandleCancel))
}
