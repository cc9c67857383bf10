// Package pipeline orchestrates one batch: fetch from every connector,
// classify, persist, and route scheduling actions.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"

	"github.com/adilet/commhub/internal/classifier"
	"github.com/adilet/commhub/internal/connector"
	"github.com/adilet/commhub/internal/message"
	"github.com/adilet/commhub/internal/nlp"
	"github.com/adilet/commhub/internal/notifier"
	"github.com/adilet/commhub/internal/scheduling"
	"github.com/adilet/commhub/internal/status"
	"github.com/adilet/commhub/internal/storage"
)

// LinkProvider resolves a bookable scheduling link.
type LinkProvider interface {
	SchedulingLink(ctx context.Context) string
}

// SlotFinder is implemented by calendars that can propose open times.
type SlotFinder interface {
	AvailableSlots(ctx context.Context, date time.Time, durationMinutes int) ([]scheduling.Slot, error)
}

// Failure records one isolated error inside a batch.
type Failure struct {
	Source    message.Source
	MessageID string
	Stage     string // "fetch", "store", "mark", "reply", "interview", "calendar", "notify"
	Err       error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s/%s %s: %v", f.Source, f.MessageID, f.Stage, f.Err)
}

// Report summarizes one batch run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	Fetched    int
	Classified int
	Stored     int
	Routed     int
	Skipped    int
	Failures   []Failure
	BySource   map[message.Source]int
	Duration   time.Duration
}

// Pipeline wires the collaborators for a batch run.
type Pipeline struct {
	connectors []connector.Connector
	classifier *classifier.Classifier
	store      storage.Storage
	scheduler  LinkProvider
	calendar   scheduling.EventCreator
	analyzer   *nlp.Analyzer
	notifier   notifier.Notifier
	status     *status.Store
	dryRun     bool
}

func New(cls *classifier.Classifier, store storage.Storage, scheduler LinkProvider, n notifier.Notifier, st *status.Store) *Pipeline {
	return &Pipeline{
		classifier: cls,
		store:      store,
		scheduler:  scheduler,
		analyzer:   nlp.NewAnalyzer(),
		notifier:   n,
		status:     st,
	}
}

// SetDryRun makes replies log instead of send.
func (p *Pipeline) SetDryRun(v bool) {
	p.dryRun = v
}

// SetEventCreator enables calendar holds for routed interview requests.
func (p *Pipeline) SetEventCreator(ec scheduling.EventCreator) {
	p.calendar = ec
}

// Register adds a connector. Registration order fixes the processing order of
// its messages relative to other sources.
func (p *Pipeline) Register(c connector.Connector) {
	p.connectors = append(p.connectors, c)
	if p.status != nil {
		p.status.UpdateConnectorStatus(c.Name(), c.Source(), true, "")
	}
}

// Run executes one batch. It never returns an error: every failure is
// isolated, logged, and counted in the report.
func (p *Pipeline) Run(ctx context.Context) Report {
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		BySource:  make(map[message.Source]int),
	}
	slog.Info("Batch started", "run_id", report.RunID, "connectors", len(p.connectors))

	messages := p.fetchAll(ctx, &report)
	report.Fetched = len(messages)

	for _, msg := range messages {
		p.process(ctx, msg, &report)
	}

	report.Duration = time.Since(report.StartedAt)
	if p.status != nil {
		p.status.AddRun(status.RunSummary{
			RunID:     report.RunID,
			StartedAt: report.StartedAt,
			Duration:  report.Duration,
			Fetched:   report.Fetched,
			Stored:    report.Stored,
			Routed:    report.Routed,
			Failures:  len(report.Failures),
		})
	}

	slog.Info("Batch finished",
		"run_id", report.RunID,
		"fetched", report.Fetched,
		"stored", report.Stored,
		"routed", report.Routed,
		"failures", len(report.Failures),
		"duration", report.Duration.Round(time.Millisecond))
	return report
}

// fetchAll queries every connector concurrently and flattens the results in
// registration order, preserving each source's own ordering.
func (p *Pipeline) fetchAll(ctx context.Context, report *Report) []*message.Message {
	results := make([][]*message.Message, len(p.connectors))
	errs := make([]error, len(p.connectors))

	var wg sync.WaitGroup
	for i, c := range p.connectors {
		wg.Add(1)
		go func(i int, c connector.Connector) {
			defer wg.Done()
			results[i], errs[i] = c.FetchMessages(ctx)
		}(i, c)
	}
	wg.Wait()

	var all []*message.Message
	for i, c := range p.connectors {
		if errs[i] != nil {
			slog.Error("Fetch failed", "connector", c.Name(), "error", errs[i])
			report.Failures = append(report.Failures, Failure{
				Source: c.Source(),
				Stage:  "fetch",
				Err:    errs[i],
			})
			if p.status != nil {
				p.status.UpdateConnectorStatus(c.Name(), c.Source(), false, errs[i].Error())
			}
			continue
		}

		if p.status != nil {
			p.status.UpdateConnectorStatus(c.Name(), c.Source(), true, "")
		}
		for _, msg := range results[i] {
			report.BySource[msg.Source]++
			if p.status != nil {
				p.status.IncrementConnectorMessageCount(msg.Source)
			}
		}
		all = append(all, results[i]...)
	}
	return all
}

func (p *Pipeline) process(ctx context.Context, msg *message.Message, report *Report) {
	result := p.classifier.ClassifyWithConfidence(ctx, msg.Content)
	msg.Intent = result.Intent
	report.Classified++

	slog.Debug("Classified message",
		"id", msg.ID,
		"source", msg.Source,
		"intent", msg.Intent,
		"confidence", result.Confidence)

	if err := p.store.Store(ctx, msg); err != nil {
		p.fail(report, msg, "store", err)
		return
	}
	report.Stored++

	if err := p.store.MarkProcessed(ctx, msg.ID, msg.Intent); err != nil {
		p.fail(report, msg, "mark", err)
	}

	pm := status.ProcessedMessage{
		Message:     msg,
		ProcessedAt: time.Now(),
	}

	if msg.Intent == message.IntentInterviewRequest {
		pm.ReplySent, pm.NotifiedAt = p.route(ctx, msg, report)
		report.Routed++
	}

	if p.status != nil {
		p.status.AddProcessedMessage(pm)
	}
}

// route handles an interview request: reply with a scheduling link when the
// channel can carry one, record the interview, and alert the operator.
func (p *Pipeline) route(ctx context.Context, msg *message.Message, report *Report) (replySent bool, notifiedAt *time.Time) {
	slog.Info("Routing interview request", "id", msg.ID, "sender", msg.SenderName)

	link := p.scheduler.SchedulingLink(ctx)

	sender := p.replySenderFor(msg.Source)
	switch {
	case sender == nil || msg.SenderEmail == "":
		// No reply path for this message; the stored row still carries it.
		report.Skipped++
	case p.dryRun:
		slog.Info("DRY RUN reply",
			"recipient", msg.SenderEmail,
			"source", msg.Source,
			"link", link)
		replySent = true
	default:
		body := fmt.Sprintf("Thank you for your interest! Please schedule a time using this link: %s", link)
		if err := sender.SendReply(ctx, msg.SenderEmail, "Interview Scheduling", body); err != nil {
			p.fail(report, msg, "reply", err)
		} else {
			replySent = true
		}
	}

	iv := storage.Interview{
		MessageID:     msg.ID,
		CandidateName: msg.SenderName,
		Email:         msg.SenderEmail,
		CalendarLink:  link,
	}
	if err := p.store.StoreInterview(ctx, iv); err != nil {
		p.fail(report, msg, "interview", err)
	}

	if p.calendar != nil {
		if err := p.scheduleHold(ctx, msg, link); err != nil {
			p.fail(report, msg, "calendar", err)
		}
	}

	if p.notifier != nil {
		if err := p.notifier.Notify(msg); err != nil {
			p.fail(report, msg, "notify", err)
		} else {
			now := time.Now()
			notifiedAt = &now
		}
	}
	return replySent, notifiedAt
}

// scheduleHold places a tentative interview event on the calendar. The start
// time comes from a date mentioned in the message when one parses, otherwise
// from the calendar's first open slot on the next business day.
func (p *Pipeline) scheduleHold(ctx context.Context, msg *message.Message, link string) error {
	start, ok := p.proposedStart(msg.Content)
	if !ok {
		sf, canQuery := p.calendar.(SlotFinder)
		if !canQuery {
			slog.Debug("No calendar hold: no date in message and calendar cannot list slots", "id", msg.ID)
			return nil
		}
		slots, err := sf.AvailableSlots(ctx, nextBusinessDay(time.Now()), 0)
		if err != nil {
			return fmt.Errorf("find open slot: %w", err)
		}
		if len(slots) == 0 {
			slog.Info("No calendar hold: no open slots", "id", msg.ID)
			return nil
		}
		start = slots[0].Start
	}

	ev := scheduling.Event{
		Summary: fmt.Sprintf("Interview: %s", msg.SenderName),
		Description: fmt.Sprintf("Source: %s\nMessage: %s\nScheduling link: %s",
			msg.Source, msg.Preview(200), link),
		Start:      start,
		Conference: true,
	}
	if msg.SenderEmail != "" {
		ev.Attendees = []string{msg.SenderEmail}
	}

	eventID, err := p.calendar.CreateEvent(ctx, ev)
	if err != nil {
		return err
	}
	slog.Info("Calendar hold created", "id", msg.ID, "event", eventID, "start", start)
	return nil
}

// proposedStart extracts the first future date mentioned in the text.
func (p *Pipeline) proposedStart(text string) (time.Time, bool) {
	now := time.Now()
	for _, raw := range p.analyzer.ExtractEntities(text)["date"] {
		t, err := dateparse.ParseAny(raw)
		if err != nil {
			continue
		}
		// Partial dates like "March 5" parse into year 0 and fall out here.
		if t.After(now) {
			return t, true
		}
	}
	return time.Time{}, false
}

func nextBusinessDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// replySenderFor finds the registered connector for a source if it can send
// replies.
func (p *Pipeline) replySenderFor(source message.Source) connector.ReplySender {
	for _, c := range p.connectors {
		if c.Source() != source {
			continue
		}
		if rs, ok := c.(connector.ReplySender); ok {
			return rs
		}
		return nil
	}
	return nil
}

func (p *Pipeline) fail(report *Report, msg *message.Message, stage string, err error) {
	slog.Error("Pipeline step failed",
		"stage", stage,
		"id", msg.ID,
		"source", msg.Source,
		"error", err)
	report.Failures = append(report.Failures, Failure{
		Source:    msg.Source,
		MessageID: msg.ID,
		Stage:     stage,
		Err:       err,
	})
}
