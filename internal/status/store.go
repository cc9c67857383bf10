// Package status keeps an in-memory view of recent pipeline activity for the
// status API.
package status

import (
	"sync"
	"time"

	"github.com/adilet/commhub/internal/message"
)

// ProcessedMessage holds a message along with its routing outcome.
type ProcessedMessage struct {
	Message     *message.Message
	ReplySent   bool
	NotifiedAt  *time.Time // nil if no push notification was sent
	ProcessedAt time.Time
}

// ConnectorStatus tracks the state of each message connector.
type ConnectorStatus struct {
	Name         string
	Source       message.Source
	Healthy      bool
	MessageCount int
	LastMessage  *time.Time
	LastError    string
}

// RunSummary records the outcome of one pipeline batch.
type RunSummary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Fetched   int
	Stored    int
	Routed    int
	Failures  int
}

// Stats holds aggregate statistics since startup.
type Stats struct {
	TotalMessages     int
	InterviewRequests int
	RepliesSent       int
	NotificationsSent int
	Runs              int
	BySource          map[message.Source]int
	ByIntent          map[message.Intent]int
}

const maxRuns = 50

// Store is a thread-safe in-memory store with a ring buffer for messages.
type Store struct {
	mu       sync.RWMutex
	messages []ProcessedMessage // ring buffer
	capacity int
	writeIdx int
	count    int

	connectors map[string]*ConnectorStatus // keyed by connector name
	runs       []RunSummary                // capped at maxRuns

	stats Stats
}

// NewStore creates a new store with the given ring buffer capacity.
// If capacity is <= 0, it defaults to 500.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 500
	}
	return &Store{
		messages:   make([]ProcessedMessage, capacity),
		capacity:   capacity,
		connectors: make(map[string]*ConnectorStatus),
		stats: Stats{
			BySource: make(map[message.Source]int),
			ByIntent: make(map[message.Intent]int),
		},
	}
}

// AddProcessedMessage adds a message to the ring buffer and updates stats.
func (s *Store) AddProcessedMessage(pm ProcessedMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[s.writeIdx] = pm
	s.writeIdx = (s.writeIdx + 1) % s.capacity
	if s.count < s.capacity {
		s.count++
	}

	s.stats.TotalMessages++
	if pm.Message != nil {
		s.stats.BySource[pm.Message.Source]++
		s.stats.ByIntent[pm.Message.Intent]++
		if pm.Message.Intent == message.IntentInterviewRequest {
			s.stats.InterviewRequests++
		}
	}
	if pm.ReplySent {
		s.stats.RepliesSent++
	}
	if pm.NotifiedAt != nil {
		s.stats.NotificationsSent++
	}
}

// RecentMessages returns the most recent N messages in reverse chronological order.
func (s *Store) RecentMessages(limit int) []ProcessedMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > s.count {
		limit = s.count
	}

	result := make([]ProcessedMessage, 0, limit)
	for i := 0; i < limit; i++ {
		// Walk backwards from the most recently written position.
		idx := (s.writeIdx - 1 - i + s.capacity) % s.capacity
		result = append(result, s.messages[idx])
	}
	return result
}

// UpdateConnectorStatus records the health of a connector after a fetch.
func (s *Store) UpdateConnectorStatus(name string, source message.Source, healthy bool, lastError string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.connectors[name]
	if !ok {
		cs = &ConnectorStatus{
			Name:   name,
			Source: source,
		}
		s.connectors[name] = cs
	}
	cs.Healthy = healthy
	cs.LastError = lastError
}

// IncrementConnectorMessageCount bumps the per-connector message counter.
func (s *Store) IncrementConnectorMessageCount(source message.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, cs := range s.connectors {
		if cs.Source == source {
			cs.MessageCount++
			cs.LastMessage = &now
			return
		}
	}
}

// ConnectorStatuses returns a snapshot of all connector statuses.
func (s *Store) ConnectorStatuses() []ConnectorStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ConnectorStatus, 0, len(s.connectors))
	for _, cs := range s.connectors {
		cp := *cs
		result = append(result, cp)
	}
	return result
}

// AddRun records a batch outcome, keeping at most the last 50 entries.
func (s *Store) AddRun(r RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.runs) >= maxRuns {
		// Drop the oldest entry.
		s.runs = s.runs[1:]
	}
	s.runs = append(s.runs, r)
	s.stats.Runs++
}

// RecentRuns returns the most recent N run summaries in reverse chronological order.
func (s *Store) RecentRuns(limit int) []RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.runs)
	if limit <= 0 || limit > total {
		limit = total
	}

	result := make([]RunSummary, 0, limit)
	for i := 0; i < limit; i++ {
		result = append(result, s.runs[total-1-i])
	}
	return result
}

// GetStats returns a copy of the current aggregate statistics.
func (s *Store) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := s.stats
	cp.BySource = make(map[message.Source]int, len(s.stats.BySource))
	for k, v := range s.stats.BySource {
		cp.BySource[k] = v
	}
	cp.ByIntent = make(map[message.Intent]int, len(s.stats.ByIntent))
	for k, v := range s.stats.ByIntent {
		cp.ByIntent[k] = v
	}
	return cp
}
