package scheduling

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MahdiBaghbani/busyday-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/busyday-go/internal/store"
)

const tracerName = "github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"

// Option configures an Engine or an Aggregator.
type Option func(*options)

type options struct {
	now    func() time.Time
	locker *DayLocker
	gate   FriendshipGate
}

// WithClock overrides the wall clock used to derive "today".
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocker shares a DayLocker between engines.
func WithLocker(l *DayLocker) Option {
	return func(o *options) { o.locker = l }
}

// WithFriendshipGate replaces the store's friendship lookup. Without it the
// engine checks friendship on the open transaction, atomically with the insert.
func WithFriendshipGate(g FriendshipGate) Option {
	return func(o *options) { o.gate = g }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locker == nil {
		o.locker = NewDayLocker()
	}
	return o
}

// Engine runs invitation state transitions. It holds no state besides its locker.
type Engine struct {
	store  Store
	gate   FriendshipGate
	locks  *DayLocker
	now    func() time.Time
	log    *slog.Logger
	tracer trace.Tracer
}

// NewEngine creates an engine over s.
func NewEngine(s Store, log *slog.Logger, opts ...Option) *Engine {
	o := buildOptions(opts)
	return &Engine{
		store:  s,
		gate:   o.gate,
		locks:  o.locker,
		now:    o.now,
		log:    logutil.NoopIfNil(log),
		tracer: otel.Tracer(tracerName),
	}
}

// Create stores a pending invitation with its proposed dates and returns its id.
func (e *Engine) Create(ctx context.Context, proposer, recipient uuid.UUID, rawDates []string) (uuid.UUID, error) {
	ctx, span := e.tracer.Start(ctx, "scheduling.Create", trace.WithAttributes(
		attribute.String("user.id", proposer.String()),
		attribute.String("recipient.id", recipient.String()),
		attribute.Int("dates.count", len(rawDates)),
	))
	defer span.End()

	if proposer == recipient {
		return uuid.Nil, badRequest(ReasonSelfInvitation, "cannot invite yourself")
	}
	dates, err := e.parseProposal(rawDates)
	if err != nil {
		return uuid.Nil, err
	}

	inv := &Invitation{
		ID:         newID(),
		FromUserID: proposer,
		ToUserID:   recipient,
		Status:     StatusPending,
		CreatedAt:  e.now().UTC(),
	}
	inv.Dates = make([]ProposedDate, 0, len(dates))
	for _, d := range dates {
		inv.Dates = append(inv.Dates, ProposedDate{ID: newID(), InvitationID: inv.ID, Date: d})
	}

	err = e.store.InTx(ctx, func(tx Tx) error {
		var gate FriendshipGate = tx
		if e.gate != nil {
			gate = e.gate
		}
		ok, err := gate.AreFriends(ctx, proposer, recipient)
		if err != nil {
			return err
		}
		if !ok {
			return newError(KindForbidden, ReasonNotFriends, "users are not friends")
		}
		return tx.CreateInvitation(ctx, inv)
	})
	if err != nil {
		return uuid.Nil, e.fail(ctx, span, "create invitation", err)
	}

	appctx.LoggerOr(ctx, e.log).Info("invitation created",
		"invitation_id", inv.ID, "to_user_id", recipient, "dates", len(inv.Dates))
	return inv.ID, nil
}

// parseProposal validates a proposed date list: non-empty, well-formed,
// pairwise distinct, and not before today.
func (e *Engine) parseProposal(raw []string) ([]Date, error) {
	if len(raw) == 0 {
		return nil, badRequest(ReasonEmptyDates, "dates cannot be empty")
	}
	today := Today(e.now)
	seen := make(map[Date]struct{}, len(raw))
	out := make([]Date, 0, len(raw))
	for _, s := range raw {
		d, err := ParseDate(s)
		if err != nil {
			return nil, badRequest(ReasonInvalidDate, err.Error())
		}
		if d.Before(today) {
			return nil, badRequest(ReasonPastDate, "past dates are not allowed: "+d.String())
		}
		if _, dup := seen[d]; dup {
			return nil, badRequest(ReasonDuplicateDate, "dates must be unique: "+d.String())
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out, nil
}

// Accept selects one proposed date and claims it for both participants.
//
// The invitation lock and both (user, day) locks are taken before the
// transaction starts and released after it ends, so two accepts touching the
// same user and day cannot both pass the free-day check.
func (e *Engine) Accept(ctx context.Context, id, acceptor uuid.UUID, rawDate string) (*Invitation, error) {
	ctx, span := e.tracer.Start(ctx, "scheduling.Accept", trace.WithAttributes(
		attribute.String("invitation.id", id.String()),
		attribute.String("user.id", acceptor.String()),
	))
	defer span.End()

	date, err := ParseDate(rawDate)
	if err != nil {
		return nil, badRequest(ReasonInvalidDate, err.Error())
	}

	// Participants never change, so a read outside the transaction is enough
	// to know which day locks to take.
	pre, err := e.store.GetInvitation(ctx, id)
	if err != nil {
		return nil, e.fail(ctx, span, "load invitation", err)
	}
	if pre.ToUserID != acceptor || pre.Status != StatusPending {
		return nil, notFound()
	}

	unlock, err := e.locks.Lock(ctx,
		InvitationKey(id),
		BusyKey(pre.FromUserID, date),
		BusyKey(pre.ToUserID, date),
	)
	if err != nil {
		return nil, e.fail(ctx, span, "wait for day lock", err)
	}
	defer unlock()

	err = e.store.InTx(ctx, func(tx Tx) error {
		inv, err := tx.GetPendingInvitation(ctx, id)
		if err != nil {
			return err
		}
		if inv.ToUserID != acceptor {
			return notFound()
		}
		if !inv.HasDate(date) {
			return badRequest(ReasonDateNotProposed, "selected_date is not proposed")
		}
		users := participants(inv)
		for _, user := range users {
			busy, err := tx.BusydayExists(ctx, user, date)
			if err != nil {
				return err
			}
			if busy {
				return newError(KindConflict, ReasonDayBusy, "selected day is already busy")
			}
		}
		if err := tx.MarkAccepted(ctx, id, date); err != nil {
			return err
		}
		eventID := inv.ID
		days := make([]Busyday, 0, len(users))
		for _, user := range users {
			days = append(days, Busyday{ID: newID(), UserID: user, Date: date, EventID: &eventID})
		}
		return tx.InsertBusydays(ctx, days)
	})
	if err != nil {
		return nil, e.fail(ctx, span, "accept invitation", err)
	}

	appctx.LoggerOr(ctx, e.log).Info("invitation accepted", "invitation_id", id, "date", date)
	return e.reload(ctx, span, id)
}

// participants returns sender and recipient in ascending id order. Accepts
// that touch the same pair write their busyday rows in this order, so two
// transactions never hold each other's unique-index locks.
func participants(inv *Invitation) [2]uuid.UUID {
	a, b := inv.FromUserID, inv.ToUserID
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return [2]uuid.UUID{a, b}
}

// Decline resolves a pending invitation as declined. Only the recipient may decline.
func (e *Engine) Decline(ctx context.Context, id, caller uuid.UUID) (*Invitation, error) {
	ctx, span := e.tracer.Start(ctx, "scheduling.Decline", trace.WithAttributes(
		attribute.String("invitation.id", id.String()),
		attribute.String("user.id", caller.String()),
	))
	defer span.End()

	err := e.resolve(ctx, id, func(tx Tx, inv *Invitation) error {
		if err := requireSide(inv, caller, inv.ToUserID, "only the recipient can decline"); err != nil {
			return err
		}
		return tx.MarkDeclined(ctx, id)
	})
	if err != nil {
		return nil, e.fail(ctx, span, "decline invitation", err)
	}

	appctx.LoggerOr(ctx, e.log).Info("invitation declined", "invitation_id", id)
	return e.reload(ctx, span, id)
}

// Cancel deletes a pending invitation and its proposed dates. Only the sender may cancel.
func (e *Engine) Cancel(ctx context.Context, id, caller uuid.UUID) error {
	ctx, span := e.tracer.Start(ctx, "scheduling.Cancel", trace.WithAttributes(
		attribute.String("invitation.id", id.String()),
		attribute.String("user.id", caller.String()),
	))
	defer span.End()

	err := e.resolve(ctx, id, func(tx Tx, inv *Invitation) error {
		if err := requireSide(inv, caller, inv.FromUserID, "only the sender can cancel"); err != nil {
			return err
		}
		return tx.DeleteInvitation(ctx, id)
	})
	if err != nil {
		return e.fail(ctx, span, "cancel invitation", err)
	}

	appctx.LoggerOr(ctx, e.log).Info("invitation cancelled", "invitation_id", id)
	return nil
}

// resolve runs fn on the pending invitation id under its invitation lock.
func (e *Engine) resolve(ctx context.Context, id uuid.UUID, fn func(Tx, *Invitation) error) error {
	unlock, err := e.locks.Lock(ctx, InvitationKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	return e.store.InTx(ctx, func(tx Tx) error {
		inv, err := tx.GetPendingInvitation(ctx, id)
		if err != nil {
			return err
		}
		return fn(tx, inv)
	})
}

// requireSide checks that caller is the participant want. The other
// participant gets Forbidden; strangers get NotFound.
func requireSide(inv *Invitation, caller, want uuid.UUID, msg string) error {
	if caller == want {
		return nil
	}
	if inv.IsParticipant(caller) {
		return newError(KindForbidden, ReasonNotParticipant, msg)
	}
	return notFound()
}

// Get returns one invitation visible to caller.
func (e *Engine) Get(ctx context.Context, id, caller uuid.UUID) (*Invitation, error) {
	ctx, span := e.tracer.Start(ctx, "scheduling.Get")
	defer span.End()

	inv, err := e.store.GetInvitation(ctx, id)
	if err != nil {
		return nil, e.fail(ctx, span, "load invitation", err)
	}
	if !inv.IsParticipant(caller) {
		return nil, newError(KindForbidden, ReasonNotParticipant, "forbidden")
	}
	return inv, nil
}

// ListIncoming lists invitations addressed to caller with the given status.
func (e *Engine) ListIncoming(ctx context.Context, caller uuid.UUID, status Status) ([]*Invitation, error) {
	return e.list(ctx, "scheduling.ListIncoming", ListFilter{UserID: caller, Role: RoleRecipient, Status: status})
}

// ListOutgoing lists invitations sent by caller with the given status.
func (e *Engine) ListOutgoing(ctx context.Context, caller uuid.UUID, status Status) ([]*Invitation, error) {
	return e.list(ctx, "scheduling.ListOutgoing", ListFilter{UserID: caller, Role: RoleSender, Status: status})
}

func (e *Engine) list(ctx context.Context, spanName string, f ListFilter) ([]*Invitation, error) {
	ctx, span := e.tracer.Start(ctx, spanName)
	defer span.End()

	if f.Status == "" {
		f.Status = StatusPending
	}
	out, err := e.store.ListInvitations(ctx, f)
	if err != nil {
		return nil, e.fail(ctx, span, "list invitations", err)
	}
	return out, nil
}

func (e *Engine) reload(ctx context.Context, span trace.Span, id uuid.UUID) (*Invitation, error) {
	inv, err := e.store.GetInvitation(ctx, id)
	if err != nil {
		return nil, e.fail(ctx, span, "reload invitation", err)
	}
	return inv, nil
}

// fail maps err onto the scheduling taxonomy. Storage details are logged
// and recorded on the span, never returned in the message.
func (e *Engine) fail(ctx context.Context, span trace.Span, op string, err error) error {
	return classify(ctx, e.log, span, op, err)
}

func classify(ctx context.Context, base *slog.Logger, span trace.Span, op string, err error) error {
	var se *Error
	switch {
	case errors.As(err, &se):
		if se.Kind != KindInternal {
			span.SetAttributes(attribute.String("scheduling.reason", se.Reason))
			return se
		}
	case errors.Is(err, store.ErrNotFound):
		return notFound()
	case errors.Is(err, store.ErrAlreadyExists):
		span.SetAttributes(attribute.String("scheduling.reason", ReasonDayBusy))
		return newError(KindConflict, ReasonDayBusy, "selected day is already busy")
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	log := appctx.LoggerOr(ctx, base)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Warn(op+" aborted", "error", err)
	} else {
		log.Error(op+" failed", "error", err)
	}
	if se != nil {
		return se
	}
	return internalError(op+" failed", err)
}
