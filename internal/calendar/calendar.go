// Package calendar exports events as iCalendar documents.
package calendar

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"event-invitations/internal/models"
)

const productID = "-//event-invitations//EN"

// DefaultDuration is used for DTEND since events only carry a start time
const DefaultDuration = 5 * time.Hour

// Encode writes a VCALENDAR holding a single VEVENT for e
func Encode(w io.Writer, e models.Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, e.ID+"@event-invitations")
	ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeStart, e.StartsAt.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeEnd, e.StartsAt.Add(DefaultDuration).UTC())
	ev.Props.SetText(ical.PropSummary, e.Title)
	if e.Location != "" {
		ev.Props.SetText(ical.PropLocation, e.Location)
	}
	if e.Description != "" {
		ev.Props.SetText(ical.PropDescription, e.Description)
	}
	ev.Props.SetText(ical.PropStatus, status(e.Status))
	cal.Children = append(cal.Children, ev.Component)

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func status(s models.EventStatus) string {
	switch s {
	case models.EventCancelled:
		return "CANCELLED"
	case models.EventDraft:
		return "TENTATIVE"
	default:
		return "CONFIRMED"
	}
}
