// Package storage persists classified messages to a tabular store. Writes
// are idempotent: storing the same message ID twice yields one row.
//
// Dedup keys on the raw message ID only; IDs are unique within a source but
// sources share no namespace, so a cross-source collision would silently
// coalesce. Known limitation, inherited from the sheet layout.
package storage

import (
	"context"

	"github.com/adilet/commhub/internal/message"
)

// StoredMessage is a persisted row as read back from the store.
type StoredMessage struct {
	ID          string
	Source      message.Source
	SenderName  string
	SenderEmail string
	Timestamp   string
	Subject     string
	Preview     string
	Intent      message.Intent
	Processed   bool
}

// Filter narrows Query results. Zero values match everything.
type Filter struct {
	Source      message.Source
	Intent      message.Intent
	Unprocessed bool
}

// Interview is a scheduling record created when an interview request is
// routed.
type Interview struct {
	MessageID     string
	CandidateName string
	Email         string
	ScheduledDate string
	Status        string
	CalendarLink  string
	Notes         string
}

// Storage is the tabular store collaborator contract.
type Storage interface {
	// Store persists one message. Calling it again with an already-stored ID
	// is a successful no-op.
	Store(ctx context.Context, msg *message.Message) error

	// MarkProcessed flips the processed flag for the given ID and, when
	// intent is non-empty, updates the stored intent. Unknown IDs are a
	// silent no-op.
	MarkProcessed(ctx context.Context, id string, intent message.Intent) error

	// Query returns stored rows matching the filter.
	Query(ctx context.Context, f Filter) ([]StoredMessage, error)

	// StoreInterview appends an interview scheduling record.
	StoreInterview(ctx context.Context, iv Interview) error
}

// previewLen is how much message content is kept in the tabular row.
const previewLen = 100
