package webhook

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/models"
)

const defaultColor = "0082c9"

// Formatter flattens calendar events into webhook payload entries.
type Formatter struct {
	baseURL string
	loc     *time.Location
	now     func() time.Time
}

func NewFormatter(baseURL string, loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{baseURL: strings.TrimRight(baseURL, "/"), loc: loc, now: time.Now}
}

func (f *Formatter) Event(e *models.CalendarEvent) models.WebhookEvent {
	attendees := e.Attendees
	if attendees == nil {
		attendees = []models.Attendee{}
	}
	return models.WebhookEvent{
		ID:             e.ID,
		Title:          e.Title,
		Calendar:       e.CalendarName,
		Start:          e.Start.In(f.loc).Format(time.RFC3339),
		End:            e.End.In(f.loc).Format(time.RFC3339),
		StartFormatted: f.absolute(e.Start, e.AllDay),
		EndFormatted:   f.absolute(e.End, e.AllDay),
		StartRelative:  Relative(e.Start.Sub(f.now())),
		AllDay:         e.AllDay,
		Location:       e.Location,
		Link:           f.baseURL + "/calendar/events/" + url.PathEscape(e.ID),
		ColorURL:       f.ColorURL(e.Color),
		Organizer:      e.Organizer,
		Attendees:      attendees,
	}
}

func (f *Formatter) Events(list []models.CalendarEvent) []models.WebhookEvent {
	out := make([]models.WebhookEvent, 0, len(list))
	for i := range list {
		out = append(out, f.Event(&list[i]))
	}
	return out
}

// ColorURL points at the SVG swatch served for a calendar color.
func (f *Formatter) ColorURL(color string) string {
	hex := NormalizeColor(color)
	if hex == "" {
		hex = defaultColor
	}
	return f.baseURL + "/color/" + hex
}

func (f *Formatter) absolute(t time.Time, allDay bool) string {
	if allDay {
		return t.In(f.loc).Format("Mon, Jan 2 2006")
	}
	return t.In(f.loc).Format("Mon, Jan 2 2006 15:04 MST")
}

// NormalizeColor returns a lowercase 3 or 6 digit hex color without "#",
// or "" when color is not one.
func NormalizeColor(color string) string {
	c := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(color), "#"))
	if len(c) != 3 && len(c) != 6 {
		return ""
	}
	for _, r := range c {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return ""
		}
	}
	return c
}

// Relative renders an offset from now as "in 10 minutes" or "2 hours ago".
func Relative(d time.Duration) string {
	abs := d
	if abs < 0 {
		abs = -abs
	}
	if abs < time.Minute {
		return "now"
	}

	// the unit follows the rounded value, so 59m40s reads as "1 hour"
	n, unit := int64(abs.Round(time.Minute)/time.Minute), "minute"
	if n >= 60 {
		n, unit = int64(abs.Round(time.Hour)/time.Hour), "hour"
	}
	if unit == "hour" && n >= 24 {
		n, unit = int64(abs.Round(24*time.Hour)/(24*time.Hour)), "day"
	}
	if n != 1 {
		unit += "s"
	}
	if d > 0 {
		return fmt.Sprintf("in %d %s", n, unit)
	}
	return fmt.Sprintf("%d %s ago", n, unit)
}
