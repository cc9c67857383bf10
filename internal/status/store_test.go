package status

import (
	"fmt"
	"testing"
	"time"

	"github.com/adilet/commhub/internal/message"
)

func newMessage(t *testing.T, id string, source message.Source, intent message.Intent) *message.Message {
	t.Helper()

	msg, err := message.New(source, id, "Sender", "sender@example.com")
	if err != nil {
		t.Fatalf("message.New() error = %v", err)
	}
	msg.Intent = intent
	return msg
}

func TestRingBufferWrapsAround(t *testing.T) {
	s := NewStore(3)

	for i := 0; i < 5; i++ {
		s.AddProcessedMessage(ProcessedMessage{
			Message:     newMessage(t, fmt.Sprintf("m%d", i), message.SourceGmail, message.IntentOther),
			ProcessedAt: time.Now(),
		})
	}

	recent := s.RecentMessages(0)
	if len(recent) != 3 {
		t.Fatalf("got %d messages, want capacity 3", len(recent))
	}
	// Most recent first.
	for i, want := range []string{"m4", "m3", "m2"} {
		if recent[i].Message.ID != want {
			t.Errorf("recent[%d].ID = %q, want %q", i, recent[i].Message.ID, want)
		}
	}

	stats := s.GetStats()
	if stats.TotalMessages != 5 {
		t.Errorf("TotalMessages = %d, want 5 (stats survive eviction)", stats.TotalMessages)
	}
}

func TestStatsCounting(t *testing.T) {
	s := NewStore(10)
	now := time.Now()

	s.AddProcessedMessage(ProcessedMessage{
		Message:     newMessage(t, "a", message.SourceGmail, message.IntentInterviewRequest),
		ReplySent:   true,
		NotifiedAt:  &now,
		ProcessedAt: now,
	})
	s.AddProcessedMessage(ProcessedMessage{
		Message:     newMessage(t, "b", message.SourceSlack, message.IntentFollowUp),
		ProcessedAt: now,
	})

	stats := s.GetStats()
	if stats.InterviewRequests != 1 {
		t.Errorf("InterviewRequests = %d, want 1", stats.InterviewRequests)
	}
	if stats.RepliesSent != 1 {
		t.Errorf("RepliesSent = %d, want 1", stats.RepliesSent)
	}
	if stats.NotificationsSent != 1 {
		t.Errorf("NotificationsSent = %d, want 1", stats.NotificationsSent)
	}
	if stats.BySource[message.SourceGmail] != 1 || stats.BySource[message.SourceSlack] != 1 {
		t.Errorf("BySource = %v", stats.BySource)
	}
	if stats.ByIntent[message.IntentInterviewRequest] != 1 {
		t.Errorf("ByIntent = %v", stats.ByIntent)
	}
}

func TestConnectorStatuses(t *testing.T) {
	s := NewStore(10)

	s.UpdateConnectorStatus("gmail", message.SourceGmail, true, "")
	s.UpdateConnectorStatus("slack", message.SourceSlack, false, "auth failed")
	s.IncrementConnectorMessageCount(message.SourceGmail)
	s.IncrementConnectorMessageCount(message.SourceGmail)

	statuses := s.ConnectorStatuses()
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
	byName := make(map[string]ConnectorStatus)
	for _, cs := range statuses {
		byName[cs.Name] = cs
	}
	if !byName["gmail"].Healthy || byName["gmail"].MessageCount != 2 {
		t.Errorf("gmail status = %+v", byName["gmail"])
	}
	if byName["slack"].Healthy || byName["slack"].LastError != "auth failed" {
		t.Errorf("slack status = %+v", byName["slack"])
	}
}

func TestRunLogCapped(t *testing.T) {
	s := NewStore(10)

	for i := 0; i < maxRuns+5; i++ {
		s.AddRun(RunSummary{RunID: fmt.Sprintf("run-%d", i), StartedAt: time.Now()})
	}

	runs := s.RecentRuns(0)
	if len(runs) != maxRuns {
		t.Fatalf("got %d runs, want %d", len(runs), maxRuns)
	}
	if runs[0].RunID != fmt.Sprintf("run-%d", maxRuns+4) {
		t.Errorf("most recent run = %q", runs[0].RunID)
	}
	if s.GetStats().Runs != maxRuns+5 {
		t.Errorf("Runs = %d, want %d", s.GetStats().Runs, maxRuns+5)
	}
}
