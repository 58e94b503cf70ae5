package calendar

import (
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
)

// ContentType is the media type of the .ics export.
const ContentType = "text/calendar; charset=utf-8"

const productID = "-//busyday-go//calendar//EN"

const periodLayout = "20060102T150405Z"

// WriteICS encodes cal's busy days as confirmed all-day events and pending
// proposals as tentative ones. A VFREEBUSY spanning the requested range is
// always present, so a range with no entries still encodes.
func WriteICS(w io.Writer, cal *scheduling.Calendar, busy []scheduling.Busyday, pending []scheduling.PendingInvite) error {
	out := ical.NewCalendar()
	out.Props.SetText(ical.PropVersion, "2.0")
	out.Props.SetText(ical.PropProductID, productID)
	out.Props.SetText("X-WR-CALNAME", "busydays "+cal.Owner.String())

	stamp := cal.AsOf.UTC()
	out.Children = append(out.Children, freeBusy(cal, busy, stamp))
	for _, b := range busy {
		ev := allDayEvent(b.ID.String()+"@busyday", b.Date, stamp)
		ev.Props.SetText(ical.PropSummary, "Busy")
		ev.Props.SetText(ical.PropStatus, "CONFIRMED")
		ev.Props.SetText(ical.PropTransparency, "OPAQUE")
		if b.EventID != nil {
			ev.Props.SetText(ical.PropRelatedTo, b.EventID.String())
		}
		out.Children = append(out.Children, ev)
	}
	for _, p := range pending {
		ev := allDayEvent(p.InvitationID.String()+"-"+p.Date.String()+"@busyday", p.Date, stamp)
		ev.Props.SetText(ical.PropSummary, "Proposed ("+string(p.Direction)+")")
		ev.Props.SetText(ical.PropStatus, "TENTATIVE")
		ev.Props.SetText(ical.PropTransparency, "TRANSPARENT")
		ev.Props.SetText(ical.PropRelatedTo, p.InvitationID.String())
		out.Children = append(out.Children, ev)
	}

	return ical.NewEncoder(w).Encode(out)
}

// freeBusy covers [From, To+1) and lists each busy day as a BUSY period.
func freeBusy(cal *scheduling.Calendar, busy []scheduling.Busyday, stamp time.Time) *ical.Component {
	fb := ical.NewComponent(ical.CompFreeBusy)
	fb.Props.SetText(ical.PropUID, cal.Owner.String()+"-"+cal.Range.From.String()+"-"+cal.Range.To.String()+"@busyday")
	fb.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	fb.Props.SetDateTime(ical.PropDateTimeStart, cal.Range.From.Time())
	fb.Props.SetDateTime(ical.PropDateTimeEnd, cal.Range.To.AddDays(1).Time())
	for _, b := range busy {
		p := ical.NewProp(ical.PropFreeBusy)
		p.Params.Set("FBTYPE", "BUSY")
		p.Value = b.Date.Time().Format(periodLayout) + "/" + b.Date.AddDays(1).Time().Format(periodLayout)
		fb.Props.Add(p)
	}
	return fb
}

// allDayEvent spans d with an exclusive DTEND on the following day.
func allDayEvent(uid string, d scheduling.Date, stamp time.Time) *ical.Component {
	ev := ical.NewComponent(ical.CompEvent)
	ev.Props.SetText(ical.PropUID, uid)
	ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ev.Props.SetDate(ical.PropDateTimeStart, d.Time())
	ev.Props.SetDate(ical.PropDateTimeEnd, d.AddDays(1).Time())
	return ev
}
