// Package scheduling provides the interview scheduling integrations:
// Calendly links and Google Calendar events.
package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/adilet/commhub/internal/config"
)

const calendlyAPIBase = "https://api.calendly.com"

// ScheduledEvent is one upcoming Calendly booking.
type ScheduledEvent struct {
	ID        string
	Name      string
	StartTime string
	EndTime   string
	Status    string
	EventType string
	Location  string
}

// CalendlyScheduler resolves scheduling links through the Calendly API.
type CalendlyScheduler struct {
	apiKey       string
	user         string
	defaultLink  string
	fallbackLink string

	apiURL string
	client *http.Client
}

func NewCalendlyScheduler(cfg config.CalendlyConfig) *CalendlyScheduler {
	if cfg.APIKey == "" {
		slog.Warn("Calendly API key not configured, only static links available")
	}
	return &CalendlyScheduler{
		apiKey:       cfg.APIKey,
		user:         cfg.User,
		defaultLink:  cfg.DefaultLink,
		fallbackLink: cfg.FallbackLink,
		apiURL:       calendlyAPIBase,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

// SchedulingLink returns a link the recruiter can book against. The configured
// default wins; otherwise the first event type from the API; otherwise the
// fallback link. It never fails, at worst it returns an empty string.
func (c *CalendlyScheduler) SchedulingLink(ctx context.Context) string {
	if c.defaultLink != "" {
		return c.defaultLink
	}

	link, err := c.firstEventLink(ctx)
	if err != nil {
		slog.Error("Failed to resolve Calendly scheduling link", "error", err)
		return c.fallbackLink
	}
	if link == "" {
		return c.fallbackLink
	}
	return link
}

func (c *CalendlyScheduler) firstEventLink(ctx context.Context) (string, error) {
	if c.apiKey == "" || c.user == "" {
		return "", fmt.Errorf("missing Calendly credentials")
	}

	var resp struct {
		Data []struct {
			Attributes struct {
				Name          string `json:"name"`
				SchedulingURL string `json:"scheduling_url"`
			} `json:"attributes"`
		} `json:"data"`
	}
	query := url.Values{"user": {c.user}}
	if err := c.get(ctx, "/event_types", query, &resp); err != nil {
		return "", err
	}

	if len(resp.Data) == 0 {
		slog.Warn("No Calendly event types found")
		return "", nil
	}
	return resp.Data[0].Attributes.SchedulingURL, nil
}

// ScheduledEvents returns bookings starting within the next daysForward days.
func (c *CalendlyScheduler) ScheduledEvents(ctx context.Context, daysForward int) ([]ScheduledEvent, error) {
	if c.apiKey == "" || c.user == "" {
		return nil, fmt.Errorf("missing Calendly credentials")
	}
	if daysForward <= 0 {
		daysForward = 30
	}

	now := time.Now()
	query := url.Values{
		"user":           {c.user},
		"min_start_time": {now.Format(time.RFC3339)},
		"max_start_time": {now.AddDate(0, 0, daysForward).Format(time.RFC3339)},
	}

	var resp struct {
		Data []struct {
			ID         string `json:"id"`
			Attributes struct {
				Name      string `json:"name"`
				StartTime string `json:"start_time"`
				EndTime   string `json:"end_time"`
				Status    string `json:"status"`
				EventType string `json:"event_type"`
				Location  struct {
					Location string `json:"location"`
				} `json:"location"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/scheduled_events", query, &resp); err != nil {
		return nil, err
	}

	events := make([]ScheduledEvent, 0, len(resp.Data))
	for _, ev := range resp.Data {
		events = append(events, ScheduledEvent{
			ID:        ev.ID,
			Name:      ev.Attributes.Name,
			StartTime: ev.Attributes.StartTime,
			EndTime:   ev.Attributes.EndTime,
			Status:    ev.Attributes.Status,
			EventType: ev.Attributes.EventType,
			Location:  ev.Attributes.Location.Location,
		})
	}
	return events, nil
}

func (c *CalendlyScheduler) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.apiURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calendly request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("calendly request %s: status %d: %s", path, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
