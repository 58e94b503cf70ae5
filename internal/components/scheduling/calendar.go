package scheduling

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MahdiBaghbani/busyday-go/internal/platform/logutil"
)

// Range is an inclusive span of days.
type Range struct {
	From Date
	To   Date
}

// ParseRange parses both bounds and requires from <= to.
func ParseRange(from, to string) (Range, error) {
	f, err := ParseDate(from)
	if err != nil {
		return Range{}, badRequest(ReasonInvalidDate, "from: "+err.Error())
	}
	t, err := ParseDate(to)
	if err != nil {
		return Range{}, badRequest(ReasonInvalidDate, "to: "+err.Error())
	}
	if f.After(t) {
		return Range{}, badRequest(ReasonInvalidRange, "from must be on or before to")
	}
	return Range{From: f, To: t}, nil
}

// Contains reports whether d lies within the range.
func (r Range) Contains(d Date) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// Calendar is one user's view over a range. Each projection is loaded on
// first use and memoised, errors included.
type Calendar struct {
	Owner uuid.UUID
	Range Range
	Today Date
	// AsOf is the clock reading the calendar was built at, in UTC.
	AsOf time.Time

	reader Reader
	log    *slog.Logger

	busyOnce sync.Once
	busy     []Busyday
	busyErr  error

	pendingOnce sync.Once
	pending     []PendingInvite
	pendingErr  error
}

// BusyDays returns the owner's busydays in range, ascending by date.
func (c *Calendar) BusyDays(ctx context.Context) ([]Busyday, error) {
	c.busyOnce.Do(func() {
		c.busy, c.busyErr = c.reader.ListBusydays(ctx, c.Owner, c.Range.From, c.Range.To)
		if c.busyErr != nil {
			c.busyErr = classify(ctx, c.log, trace.SpanFromContext(ctx), "load busydays", c.busyErr)
		}
	})
	return c.busy, c.busyErr
}

// PastEvents returns the dates of BusyDays strictly before today.
func (c *Calendar) PastEvents(ctx context.Context) ([]Date, error) {
	busy, err := c.BusyDays(ctx)
	if err != nil {
		return nil, err
	}
	out := []Date{}
	for _, b := range busy {
		if b.Date.Before(c.Today) {
			out = append(out, b.Date)
		}
	}
	return out, nil
}

// PendingInvites returns proposed dates of the owner's pending invitations in
// range, tagged by direction and ascending by date.
func (c *Calendar) PendingInvites(ctx context.Context) ([]PendingInvite, error) {
	c.pendingOnce.Do(func() {
		rows, err := c.reader.ListPendingProposals(ctx, c.Owner, c.Range.From, c.Range.To)
		if err != nil {
			c.pendingErr = classify(ctx, c.log, trace.SpanFromContext(ctx), "load pending invites", err)
			return
		}
		c.pending = make([]PendingInvite, 0, len(rows))
		for _, p := range rows {
			dir := DirectionIncoming
			if p.FromUserID == c.Owner {
				dir = DirectionOutgoing
			}
			c.pending = append(c.pending, PendingInvite{
				InvitationID: p.InvitationID,
				Date:         p.Date,
				Direction:    dir,
			})
		}
	})
	return c.pending, c.pendingErr
}

// Aggregator builds calendars for authorised viewers.
type Aggregator struct {
	reader Reader
	gate   FriendshipGate
	now    func() time.Time
	log    *slog.Logger
	tracer trace.Tracer
}

// NewAggregator creates an aggregator. A nil gate falls back to
// WithFriendshipGate, then to the reader's own friendship lookup.
func NewAggregator(r Reader, gate FriendshipGate, log *slog.Logger, opts ...Option) *Aggregator {
	o := buildOptions(opts)
	if gate == nil {
		gate = o.gate
	}
	if gate == nil {
		gate = r
	}
	return &Aggregator{
		reader: r,
		gate:   gate,
		now:    o.now,
		log:    logutil.NoopIfNil(log),
		tracer: otel.Tracer(tracerName),
	}
}

// GetCalendar returns target's calendar as seen by caller. The caller must be
// the target or an accepted friend of the target.
func (a *Aggregator) GetCalendar(ctx context.Context, target, caller uuid.UUID, from, to string) (*Calendar, error) {
	ctx, span := a.tracer.Start(ctx, "scheduling.GetCalendar", trace.WithAttributes(
		attribute.String("user.id", caller.String()),
		attribute.String("target.id", target.String()),
	))
	defer span.End()

	if caller != target {
		ok, err := a.gate.AreFriends(ctx, caller, target)
		if err != nil {
			return nil, classify(ctx, a.log, span, "check friendship", err)
		}
		if !ok {
			return nil, newError(KindForbidden, ReasonNotFriends, "forbidden")
		}
	}
	r, err := ParseRange(from, to)
	if err != nil {
		return nil, err
	}
	now := a.now().UTC()
	return &Calendar{
		Owner:  target,
		Range:  r,
		Today:  DateOf(now),
		AsOf:   now,
		reader: a.reader,
		log:    a.log,
	}, nil
}

// MyBusydays returns caller's own busydays in range.
func (a *Aggregator) MyBusydays(ctx context.Context, caller uuid.UUID, from, to string) ([]Busyday, error) {
	ctx, span := a.tracer.Start(ctx, "scheduling.MyBusydays", trace.WithAttributes(
		attribute.String("user.id", caller.String()),
	))
	defer span.End()

	r, err := ParseRange(from, to)
	if err != nil {
		return nil, err
	}
	out, err := a.reader.ListBusydays(ctx, caller, r.From, r.To)
	if err != nil {
		return nil, classify(ctx, a.log, span, "list busydays", err)
	}
	return out, nil
}
