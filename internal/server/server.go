// Package server exposes the pipeline's status over a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/adilet/commhub/internal/message"
	"github.com/adilet/commhub/internal/status"
)

// Server serves the status API.
type Server struct {
	store     *status.Store
	srv       *http.Server
	startedAt time.Time
}

// New creates a new Server with the given store and port.
// If port is 0, it defaults to 8080.
func New(st *status.Store, port int) *Server {
	if port == 0 {
		port = 8080
	}

	s := &Server{
		store:     st,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/messages", s.handleMessages)
	mux.HandleFunc("GET /api/connectors", s.handleConnectors)
	mux.HandleFunc("GET /api/runs", s.handleRuns)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server in a background goroutine.
func (s *Server) Start() error {
	slog.Info("Starting status server", "addr", s.srv.Addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Status server error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down status server")
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.store.GetStats()
	writeJSON(w, map[string]any{
		"total_messages":     stats.TotalMessages,
		"interview_requests": stats.InterviewRequests,
		"replies_sent":       stats.RepliesSent,
		"notifications_sent": stats.NotificationsSent,
		"runs":               stats.Runs,
		"by_source":          stats.BySource,
		"by_intent":          stats.ByIntent,
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)

	type item struct {
		ID          string         `json:"id"`
		Source      message.Source `json:"source"`
		SenderName  string         `json:"sender_name"`
		Subject     string         `json:"subject,omitempty"`
		Preview     string         `json:"preview"`
		Intent      message.Intent `json:"intent"`
		ReplySent   bool           `json:"reply_sent"`
		ProcessedAt time.Time      `json:"processed_at"`
	}

	recent := s.store.RecentMessages(limit)
	items := make([]item, 0, len(recent))
	for _, pm := range recent {
		if pm.Message == nil {
			continue
		}
		items = append(items, item{
			ID:          pm.Message.ID,
			Source:      pm.Message.Source,
			SenderName:  pm.Message.SenderName,
			Subject:     pm.Message.Subject,
			Preview:     pm.Message.Preview(100),
			Intent:      pm.Message.Intent,
			ReplySent:   pm.ReplySent,
			ProcessedAt: pm.ProcessedAt,
		})
	}
	writeJSON(w, items)
}

func (s *Server) handleConnectors(w http.ResponseWriter, r *http.Request) {
	type item struct {
		Name         string         `json:"name"`
		Source       message.Source `json:"source"`
		Healthy      bool           `json:"healthy"`
		MessageCount int            `json:"message_count"`
		LastMessage  *time.Time     `json:"last_message,omitempty"`
		LastError    string         `json:"last_error,omitempty"`
	}

	statuses := s.store.ConnectorStatuses()
	items := make([]item, 0, len(statuses))
	for _, cs := range statuses {
		items = append(items, item{
			Name:         cs.Name,
			Source:       cs.Source,
			Healthy:      cs.Healthy,
			MessageCount: cs.MessageCount,
			LastMessage:  cs.LastMessage,
			LastError:    cs.LastError,
		})
	}
	writeJSON(w, items)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	type item struct {
		RunID     string    `json:"run_id"`
		StartedAt time.Time `json:"started_at"`
		Duration  string    `json:"duration"`
		Fetched   int       `json:"fetched"`
		Stored    int       `json:"stored"`
		Routed    int       `json:"routed"`
		Failures  int       `json:"failures"`
	}

	runs := s.store.RecentRuns(queryLimit(r, 20))
	items := make([]item, 0, len(runs))
	for _, run := range runs {
		items = append(items, item{
			RunID:     run.RunID,
			StartedAt: run.StartedAt,
			Duration:  run.Duration.Round(time.Millisecond).String(),
			Fetched:   run.Fetched,
			Stored:    run.Stored,
			Routed:    run.Routed,
			Failures:  run.Failures,
		})
	}
	writeJSON(w, items)
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
