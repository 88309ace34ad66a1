// Package calendar mirrors planner events into Google Calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"ai-planner/internal/artifact"
	"ai-planner/internal/storage"
)

const defaultDuration = time.Hour

var ErrNotExportable = errors.New("event has no resolved date")

// GoogleExporter inserts committed events into one calendar.
type GoogleExporter struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
}

type Options struct {
	CredentialsPath string
	TokenPath       string
	RefreshToken    string
	CalendarID      string
	Location        *time.Location
}

func NewGoogleExporter(ctx context.Context, opts Options) (*GoogleExporter, error) {
	data, err := os.ReadFile(opts.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read calendar credentials: %w", err)
	}
	creds, err := ParseCredentials(data)
	if err != nil {
		return nil, err
	}
	ts, err := newTokenSource(ctx, NewOAuthConfig(creds), opts.TokenPath, opts.RefreshToken)
	if err != nil {
		return nil, err
	}
	svc, err := gcal.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return newExporter(svc, opts.CalendarID, opts.Location), nil
}

func newExporter(svc *gcal.Service, calendarID string, loc *time.Location) *GoogleExporter {
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &GoogleExporter{svc: svc, calendarID: calendarID, loc: loc}
}

func (e *GoogleExporter) ExportEvent(ctx context.Context, a storage.Artifact) error {
	ev, err := BuildEvent(a, e.loc)
	if err != nil {
		return err
	}
	created, err := e.svc.Events.Insert(e.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("insert calendar event: %w", err)
	}
	log.Printf("calendar: exported %s as %s", a.ID, created.Id)
	return nil
}

// BuildEvent maps a stored event onto a Calendar event. Timed events last an
// hour; events with only a date become all-day events.
func BuildEvent(rec storage.Artifact, loc *time.Location) (*gcal.Event, error) {
	typed, err := artifact.FromRecord(rec)
	if err != nil {
		return nil, err
	}
	a, ok := typed.(artifact.Event)
	if !ok {
		return nil, fmt.Errorf("artifact %s is a %s, not an event", rec.ID, rec.Kind)
	}
	if a.Date == "" {
		return nil, ErrNotExportable
	}
	day, err := time.ParseInLocation("2006-01-02", a.Date, loc)
	if err != nil {
		return nil, fmt.Errorf("bad event date %q: %w", a.Date, err)
	}

	ev := &gcal.Event{
		Summary:     a.Title,
		Description: a.Description,
		Location:    a.Location,
	}
	if a.Time == "" {
		ev.Start = &gcal.EventDateTime{Date: a.Date}
		ev.End = &gcal.EventDateTime{Date: day.AddDate(0, 0, 1).Format("2006-01-02")}
	} else {
		start, err := time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.Time, loc)
		if err != nil {
			return nil, fmt.Errorf("bad event time %q: %w", a.Time, err)
		}
		end := start.Add(defaultDuration)
		ev.Start = &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: loc.String()}
		ev.End = &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: loc.String()}
	}

	if len(a.Reminders) > 0 {
		rem := &gcal.EventReminders{UseDefault: false, ForceSendFields: []string{"UseDefault"}}
		for _, m := range a.Reminders {
			rem.Overrides = append(rem.Overrides, &gcal.EventReminder{Method: "popup", Minutes: int64(m)})
		}
		ev.Reminders = rem
	}
	return ev, nil
}
