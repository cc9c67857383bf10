package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adilet/commhub/internal/classifier"
	"github.com/adilet/commhub/internal/config"
	"github.com/adilet/commhub/internal/message"
	"github.com/adilet/commhub/internal/nlp"
	"github.com/adilet/commhub/internal/scheduling"
	"github.com/adilet/commhub/internal/status"
	"github.com/adilet/commhub/internal/storage"
)

// fakeConnector returns canned messages, optionally with a reply path.
type fakeConnector struct {
	name     string
	source   message.Source
	messages []*message.Message
	fetchErr error

	mu      sync.Mutex
	replies []string
}

func (f *fakeConnector) Name() string           { return f.name }
func (f *fakeConnector) Source() message.Source { return f.source }
func (f *fakeConnector) FetchMessages(ctx context.Context) ([]*message.Message, error) {
	return f.messages, f.fetchErr
}

// replyConnector adds SendReply to fakeConnector.
type replyConnector struct {
	fakeConnector
	replyErr error
}

func (r *replyConnector) SendReply(ctx context.Context, recipient, subject, body string) error {
	if r.replyErr != nil {
		return r.replyErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, recipient)
	return nil
}

// fakeStorage records calls in memory.
type fakeStorage struct {
	mu         sync.Mutex
	stored     map[string]*message.Message
	processed  map[string]message.Intent
	interviews []storage.Interview
	storeErr   error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		stored:    make(map[string]*message.Message),
		processed: make(map[string]message.Intent),
	}
}

func (f *fakeStorage) Store(ctx context.Context, msg *message.Message) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[msg.ID] = msg
	return nil
}

func (f *fakeStorage) MarkProcessed(ctx context.Context, id string, intent message.Intent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed[id] = intent
	return nil
}

func (f *fakeStorage) Query(ctx context.Context, filter storage.Filter) ([]storage.StoredMessage, error) {
	return nil, nil
}

func (f *fakeStorage) StoreInterview(ctx context.Context, iv storage.Interview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interviews = append(f.interviews, iv)
	return nil
}

type staticLink string

func (s staticLink) SchedulingLink(ctx context.Context) string { return string(s) }

// fakeEventCreator records created events and serves canned open slots.
type fakeEventCreator struct {
	mu        sync.Mutex
	events    []scheduling.Event
	slots     []scheduling.Slot
	createErr error
}

func (f *fakeEventCreator) CreateEvent(ctx context.Context, ev scheduling.Event) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return "evt-1", nil
}

func (f *fakeEventCreator) AvailableSlots(ctx context.Context, date time.Time, durationMinutes int) ([]scheduling.Slot, error) {
	return f.slots, nil
}

func newTestClassifier() *classifier.Classifier {
	return classifier.New(config.LLMConfig{}, nlp.NewAnalyzer())
}

func mustMessage(t *testing.T, source message.Source, id, email, content string) *message.Message {
	t.Helper()

	msg, err := message.New(source, id, "Sender", email)
	if err != nil {
		t.Fatalf("message.New() error = %v", err)
	}
	msg.Content = content
	return msg
}

func TestRunRoutesInterviewRequest(t *testing.T) {
	gmail := &replyConnector{fakeConnector: fakeConnector{
		name:   "gmail",
		source: message.SourceGmail,
		messages: []*message.Message{
			mustMessage(t, message.SourceGmail, "g1", "jane@example.com",
				"We would like to schedule an interview with you"),
		},
	}}
	store := newFakeStorage()
	st := status.NewStore(10)

	p := New(newTestClassifier(), store, staticLink("https://calendly.com/me/30min"), nil, st)
	p.Register(gmail)

	report := p.Run(context.Background())

	if report.Fetched != 1 || report.Stored != 1 || report.Routed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", report.Failures)
	}
	if store.processed["g1"] != message.IntentInterviewRequest {
		t.Errorf("processed intent = %q", store.processed["g1"])
	}
	if len(gmail.replies) != 1 || gmail.replies[0] != "jane@example.com" {
		t.Errorf("replies = %v, want one to jane@example.com", gmail.replies)
	}
	if len(store.interviews) != 1 || store.interviews[0].CalendarLink != "https://calendly.com/me/30min" {
		t.Errorf("interviews = %+v", store.interviews)
	}
	if st.GetStats().InterviewRequests != 1 {
		t.Errorf("status store did not record the interview request")
	}
}

func TestRunSkipsReplyWithoutEmail(t *testing.T) {
	discord := &replyConnector{fakeConnector: fakeConnector{
		name:   "discord",
		source: message.SourceDiscord,
		messages: []*message.Message{
			mustMessage(t, message.SourceDiscord, "d1", "",
				"Can we set up an interview next week?"),
		},
	}}
	store := newFakeStorage()

	p := New(newTestClassifier(), store, staticLink("link"), nil, nil)
	p.Register(discord)

	report := p.Run(context.Background())

	if report.Routed != 1 || report.Skipped != 1 {
		t.Fatalf("report = %+v", report)
	}
	if len(discord.replies) != 0 {
		t.Errorf("reply sent despite missing sender email")
	}
	// The interview row is still recorded.
	if len(store.interviews) != 1 {
		t.Errorf("interviews = %+v", store.interviews)
	}
}

func TestRunIsolatesFetchFailure(t *testing.T) {
	broken := &fakeConnector{
		name:     "slack",
		source:   message.SourceSlack,
		fetchErr: errors.New("auth failed"),
	}
	healthy := &fakeConnector{
		name:   "gmail",
		source: message.SourceGmail,
		messages: []*message.Message{
			mustMessage(t, message.SourceGmail, "g1", "a@b.c", "just checking in on the status"),
		},
	}
	store := newFakeStorage()

	p := New(newTestClassifier(), store, staticLink("link"), nil, nil)
	p.Register(broken)
	p.Register(healthy)

	report := p.Run(context.Background())

	if report.Fetched != 1 || report.Stored != 1 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Failures) != 1 || report.Failures[0].Stage != "fetch" {
		t.Fatalf("failures = %v", report.Failures)
	}
	if report.Failures[0].Source != message.SourceSlack {
		t.Errorf("failure source = %s", report.Failures[0].Source)
	}
	if store.processed["g1"] != message.IntentFollowUp {
		t.Errorf("processed intent = %q, want follow_up", store.processed["g1"])
	}
}

func TestRunPreservesRegistrationOrder(t *testing.T) {
	first := &fakeConnector{
		name:   "gmail",
		source: message.SourceGmail,
		messages: []*message.Message{
			mustMessage(t, message.SourceGmail, "g1", "a@b.c", "hello there"),
			mustMessage(t, message.SourceGmail, "g2", "a@b.c", "hello again"),
		},
	}
	second := &fakeConnector{
		name:   "slack",
		source: message.SourceSlack,
		messages: []*message.Message{
			mustMessage(t, message.SourceSlack, "s1", "", "hey"),
		},
	}
	store := newFakeStorage()
	st := status.NewStore(10)

	p := New(newTestClassifier(), store, staticLink("link"), nil, st)
	p.Register(first)
	p.Register(second)

	report := p.Run(context.Background())

	if report.Fetched != 3 {
		t.Fatalf("fetched = %d, want 3", report.Fetched)
	}
	if report.BySource[message.SourceGmail] != 2 || report.BySource[message.SourceSlack] != 1 {
		t.Errorf("by source = %v", report.BySource)
	}

	recent := st.RecentMessages(0)
	// Reverse chronological: slack last registered is processed last.
	wantIDs := []string{"s1", "g2", "g1"}
	for i, want := range wantIDs {
		if recent[i].Message.ID != want {
			t.Errorf("recent[%d] = %q, want %q", i, recent[i].Message.ID, want)
		}
	}
}

func TestRunCreatesCalendarHoldFromMentionedDate(t *testing.T) {
	gmail := &replyConnector{fakeConnector: fakeConnector{
		name:   "gmail",
		source: message.SourceGmail,
		messages: []*message.Message{
			mustMessage(t, message.SourceGmail, "g1", "jane@example.com",
				"Can we schedule an interview on 2027-03-05?"),
		},
	}}
	store := newFakeStorage()
	cal := &fakeEventCreator{}

	p := New(newTestClassifier(), store, staticLink("https://calendly.com/me/30min"), nil, nil)
	p.SetEventCreator(cal)
	p.Register(gmail)

	report := p.Run(context.Background())

	if report.Routed != 1 || len(report.Failures) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(cal.events) != 1 {
		t.Fatalf("events = %+v, want one hold", cal.events)
	}
	ev := cal.events[0]
	if got := ev.Start.Format("2006-01-02"); got != "2027-03-05" {
		t.Errorf("event start = %s, want the date mentioned in the message", got)
	}
	if ev.Summary != "Interview: Sender" {
		t.Errorf("event summary = %q", ev.Summary)
	}
	if len(ev.Attendees) != 1 || ev.Attendees[0] != "jane@example.com" {
		t.Errorf("attendees = %v", ev.Attendees)
	}
}

func TestRunCalendarHoldFallsBackToOpenSlot(t *testing.T) {
	slotStart := time.Now().AddDate(0, 0, 3).Truncate(time.Hour)
	gmail := &replyConnector{fakeConnector: fakeConnector{
		name:   "gmail",
		source: message.SourceGmail,
		messages: []*message.Message{
			mustMessage(t, message.SourceGmail, "g1", "jane@example.com",
				"We would like to schedule an interview with you"),
		},
	}}
	store := newFakeStorage()
	cal := &fakeEventCreator{slots: []scheduling.Slot{
		{Start: slotStart, End: slotStart.Add(30 * time.Minute)},
	}}

	p := New(newTestClassifier(), store, staticLink("link"), nil, nil)
	p.SetEventCreator(cal)
	p.Register(gmail)

	report := p.Run(context.Background())

	if report.Routed != 1 || len(report.Failures) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(cal.events) != 1 {
		t.Fatalf("events = %+v, want one hold", cal.events)
	}
	if !cal.events[0].Start.Equal(slotStart) {
		t.Errorf("event start = %v, want first open slot %v", cal.events[0].Start, slotStart)
	}
}

func TestRunCalendarFailureIsIsolated(t *testing.T) {
	gmail := &replyConnector{fakeConnector: fakeConnector{
		name:   "gmail",
		source: message.SourceGmail,
		messages: []*message.Message{
			mustMessage(t, message.SourceGmail, "g1", "jane@example.com",
				"Can we schedule an interview on 2027-03-05?"),
		},
	}}
	store := newFakeStorage()
	cal := &fakeEventCreator{createErr: errors.New("calendar unavailable")}

	p := New(newTestClassifier(), store, staticLink("link"), nil, nil)
	p.SetEventCreator(cal)
	p.Register(gmail)

	report := p.Run(context.Background())

	if report.Routed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Failures) != 1 || report.Failures[0].Stage != "calendar" {
		t.Fatalf("failures = %v, want one calendar failure", report.Failures)
	}
	// The reply and interview row still went through.
	if len(gmail.replies) != 1 {
		t.Errorf("replies = %v", gmail.replies)
	}
	if len(store.interviews) != 1 {
		t.Errorf("interviews = %+v", store.interviews)
	}
}

func TestRunStoreFailureDoesNotStopBatch(t *testing.T) {
	c := &fakeConnector{
		name:   "gmail",
		source: message.SourceGmail,
		messages: []*message.Message{
			mustMessage(t, message.SourceGmail, "g1", "a@b.c", "first"),
			mustMessage(t, message.SourceGmail, "g2", "a@b.c", "second"),
		},
	}
	store := newFakeStorage()
	store.storeErr = errors.New("sheet unavailable")

	p := New(newTestClassifier(), store, staticLink("link"), nil, nil)
	p.Register(c)

	report := p.Run(context.Background())

	if report.Classified != 2 {
		t.Errorf("classified = %d, want 2", report.Classified)
	}
	if report.Stored != 0 {
		t.Errorf("stored = %d, want 0", report.Stored)
	}
	if len(report.Failures) != 2 {
		t.Errorf("failures = %v, want one per message", report.Failures)
	}
	for _, f := range report.Failures {
		if f.Stage != "store" {
			t.Errorf("failure stage = %q", f.Stage)
		}
	}
}
