package message

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Source identifies the platform a message originated from.
type Source string

const (
	SourceGmail     Source = "gmail"
	SourceSlack     Source = "slack"
	SourceDiscord   Source = "discord"
	SourceLinkedIn  Source = "linkedin"
	SourceHandshake Source = "handshake"
	SourceTelegram  Source = "telegram"
)

// Intent is the classified purpose of a message.
type Intent string

const (
	IntentInterviewRequest Intent = "interview_request"
	IntentFollowUp         Intent = "follow_up"
	IntentJobOffer         Intent = "job_offer"
	IntentNetworking       Intent = "networking"
	IntentOther            Intent = "other"
	IntentUnknown          Intent = "unknown"
)

// Message is the canonical, source-agnostic message record. Every connector
// produces this shape; the pipeline only ever sees Messages.
//
// ID is unique within its source. Storage dedups on the raw ID alone, so
// cross-source collisions are possible; this is a documented limitation.
type Message struct {
	ID          string            `json:"id"`
	Source      Source            `json:"source"`
	SenderName  string            `json:"sender_name"`
	SenderEmail string            `json:"sender_email"` // empty when the channel exposes no address
	Timestamp   string            `json:"timestamp"`    // raw: epoch millis or source-native string
	Subject     string            `json:"subject"`
	Content     string            `json:"content"`
	RawData     map[string]string `json:"raw_data,omitempty"`
	Intent      Intent            `json:"intent,omitempty"` // set during classification
}

// NormalizationError reports a source payload that cannot be mapped to the
// canonical shape because its primary identifier is missing.
type NormalizationError struct {
	Source Source
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s message: %s", e.Source, e.Reason)
}

// New builds a Message with every optional field defaulted. It fails only
// when id is empty; missing optional fields are never an error.
func New(source Source, id, senderName, senderEmail string) (*Message, error) {
	if id == "" {
		return nil, &NormalizationError{Source: source, Reason: "missing message id"}
	}
	return &Message{
		ID:          id,
		Source:      source,
		SenderName:  senderName,
		SenderEmail: senderEmail,
		RawData:     make(map[string]string),
	}, nil
}

// SetEpochMillis records a numeric timestamp in its raw epoch-millisecond form.
func (m *Message) SetEpochMillis(ms int64) {
	m.Timestamp = strconv.FormatInt(ms, 10)
}

// Time normalizes the raw timestamp for display. Integer values are treated
// as epoch milliseconds; anything else is parsed as a date string. The raw
// form is what gets persisted, so parse failures only affect presentation.
func (m *Message) Time() (time.Time, bool) {
	ts := strings.TrimSpace(m.Timestamp)
	if ts == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(ts, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	t, err := dateparse.ParseAny(ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Preview returns the first n runes of the content for storage and logs.
func (m *Message) Preview(n int) string {
	r := []rune(m.Content)
	if len(r) <= n {
		return m.Content
	}
	return string(r[:n]) + "..."
}
