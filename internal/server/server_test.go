package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adilet/commhub/internal/message"
	"github.com/adilet/commhub/internal/status"
)

func newTestServer(t *testing.T) (*Server, *status.Store) {
	t.Helper()

	st := status.NewStore(10)
	msg, err := message.New(message.SourceGmail, "gmail_1", "Jane", "jane@example.com")
	if err != nil {
		t.Fatalf("message.New() error = %v", err)
	}
	msg.Subject = "Interview invitation"
	msg.Content = "Are you free next week?"
	msg.Intent = message.IntentInterviewRequest

	st.AddProcessedMessage(status.ProcessedMessage{
		Message:     msg,
		ReplySent:   true,
		ProcessedAt: time.Now(),
	})
	st.UpdateConnectorStatus("gmail", message.SourceGmail, true, "")

	return New(st, 0), st
}

func get(t *testing.T, s *Server, path string, out any) int {
	t.Helper()

	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if out != nil && rec.Code == 200 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return rec.Code
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	var body map[string]string
	if code := get(t, s, "/healthz", &body); code != 200 {
		t.Fatalf("GET /healthz = %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	var body map[string]any
	if code := get(t, s, "/api/stats", &body); code != 200 {
		t.Fatalf("GET /api/stats = %d", code)
	}
	if body["total_messages"].(float64) != 1 {
		t.Errorf("total_messages = %v, want 1", body["total_messages"])
	}
	if body["interview_requests"].(float64) != 1 {
		t.Errorf("interview_requests = %v, want 1", body["interview_requests"])
	}
}

func TestMessagesEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	var items []map[string]any
	if code := get(t, s, "/api/messages?limit=5", &items); code != 200 {
		t.Fatalf("GET /api/messages = %d", code)
	}
	if len(items) != 1 {
		t.Fatalf("got %d messages, want 1", len(items))
	}
	if items[0]["id"] != "gmail_1" || items[0]["intent"] != "interview_request" {
		t.Errorf("unexpected message %v", items[0])
	}
	if items[0]["reply_sent"] != true {
		t.Error("reply_sent not reported")
	}
}

func TestConnectorsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	var items []map[string]any
	if code := get(t, s, "/api/connectors", &items); code != 200 {
		t.Fatalf("GET /api/connectors = %d", code)
	}
	if len(items) != 1 {
		t.Fatalf("got %d connectors, want 1", len(items))
	}
	if items[0]["name"] != "gmail" || items[0]["healthy"] != true {
		t.Errorf("unexpected connector %v", items[0])
	}
}
