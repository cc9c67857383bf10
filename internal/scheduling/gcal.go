package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/adilet/commhub/internal/config"
	"github.com/adilet/commhub/internal/googleauth"
)

// Event describes a calendar event to create.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
	Location    string
	Conference  bool
}

// Slot is one free interval in a working day.
type Slot struct {
	Start time.Time
	End   time.Time
}

// EventCreator creates calendar events for scheduled interviews.
type EventCreator interface {
	CreateEvent(ctx context.Context, ev Event) (string, error)
}

// GoogleCalendar creates events and computes availability against a single
// Google calendar.
type GoogleCalendar struct {
	service            *calendar.Service
	calendarID         string
	defaultDurationMin int
}

func NewGoogleCalendar(ctx context.Context, cfg config.CalendarConfig) (*GoogleCalendar, error) {
	client, err := googleauth.Client(ctx, cfg.CredentialsPath, cfg.TokenPath, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("calendar oauth client: %w", err)
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	duration := cfg.DefaultDurationMinutes
	if duration <= 0 {
		duration = 30
	}

	return &GoogleCalendar{
		service:            svc,
		calendarID:         calendarID,
		defaultDurationMin: duration,
	}, nil
}

// CreateEvent inserts the event and returns its ID. Attendees are invited and
// a Meet link is attached when Conference is set.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, ev Event) (string, error) {
	end := ev.End
	if end.IsZero() || !end.After(ev.Start) {
		end = ev.Start.Add(time.Duration(g.defaultDurationMin) * time.Minute)
	}

	event := &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
	for _, email := range ev.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	call := g.service.Events.Insert(g.calendarID, event).SendUpdates("all")
	if ev.Conference {
		event.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: fmt.Sprintf("interview-%s", time.Now().Format("20060102150405")),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		}
		call = call.ConferenceDataVersion(1)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create calendar event: %w", err)
	}

	slog.Info("Calendar event created",
		"summary", ev.Summary,
		"start", ev.Start.Format(time.RFC3339),
		"event_link", created.HtmlLink)
	return created.Id, nil
}

// AvailableSlots returns free intervals of the given duration within working
// hours (9 to 17) of date, computed against that day's busy periods.
func (g *GoogleCalendar) AvailableSlots(ctx context.Context, date time.Time, durationMinutes int) ([]Slot, error) {
	if durationMinutes <= 0 {
		durationMinutes = g.defaultDurationMin
	}
	duration := time.Duration(durationMinutes) * time.Minute

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 9, 0, 0, 0, date.Location())
	dayEnd := time.Date(date.Year(), date.Month(), date.Day(), 17, 0, 0, 0, date.Location())

	// Weekends have no working hours.
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return nil, nil
	}

	resp, err := g.service.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: dayStart.Format(time.RFC3339),
		TimeMax: dayEnd.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: g.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	var busy []Slot
	if cal, ok := resp.Calendars[g.calendarID]; ok {
		for _, period := range cal.Busy {
			start, err := time.Parse(time.RFC3339, period.Start)
			if err != nil {
				continue
			}
			end, err := time.Parse(time.RFC3339, period.End)
			if err != nil {
				continue
			}
			busy = append(busy, Slot{Start: start, End: end})
		}
	}

	return freeSlots(dayStart, dayEnd, duration, busy), nil
}

// freeSlots walks the working day in duration-sized steps, skipping over busy
// periods.
func freeSlots(dayStart, dayEnd time.Time, duration time.Duration, busy []Slot) []Slot {
	var slots []Slot
	cursor := dayStart
	for cursor.Add(duration).Before(dayEnd) || cursor.Add(duration).Equal(dayEnd) {
		slotEnd := cursor.Add(duration)

		conflicted := false
		for _, b := range busy {
			if cursor.Before(b.End) && slotEnd.After(b.Start) {
				conflicted = true
				cursor = b.End
				break
			}
		}
		if conflicted {
			continue
		}

		slots = append(slots, Slot{Start: cursor, End: slotEnd})
		cursor = slotEnd
	}
	return slots
}

// MockEventCreator logs events instead of creating them. Used in dry runs.
type MockEventCreator struct{}

func NewMockEventCreator() *MockEventCreator {
	return &MockEventCreator{}
}

func (m *MockEventCreator) CreateEvent(_ context.Context, ev Event) (string, error) {
	slog.Info("MOCK CALENDAR EVENT",
		"summary", ev.Summary,
		"start", ev.Start.Format(time.RFC3339),
		"attendees", ev.Attendees)
	return "mock-event", nil
}
