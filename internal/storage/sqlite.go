package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/adilet/commhub/internal/message"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	sender_name  TEXT NOT NULL DEFAULT '',
	sender_email TEXT NOT NULL DEFAULT '',
	timestamp    TEXT NOT NULL DEFAULT '',
	subject      TEXT NOT NULL DEFAULT '',
	preview      TEXT NOT NULL DEFAULT '',
	intent       TEXT NOT NULL DEFAULT 'unknown',
	processed    INTEGER NOT NULL DEFAULT 0,
	stored_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS interviews (
	id             TEXT PRIMARY KEY,
	message_id     TEXT NOT NULL,
	candidate_name TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	scheduled_date TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'scheduled',
	calendar_link  TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStorage is the local tabular backend, used for dry runs and as a
// lightweight alternative to the spreadsheet.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (and if needed creates) the database at path.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) Store(ctx context.Context, msg *message.Message) error {
	intent := msg.Intent
	if intent == "" {
		intent = message.IntentUnknown
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages
			(id, source, sender_name, sender_email, timestamp, subject, preview, intent, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, string(msg.Source), msg.SenderName, msg.SenderEmail,
		msg.Timestamp, msg.Subject, msg.Preview(previewLen), string(intent),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		slog.Debug("Message already stored", "id", msg.ID)
	}
	return nil
}

func (s *SQLiteStorage) MarkProcessed(ctx context.Context, id string, intent message.Intent) error {
	var err error
	if intent != "" {
		_, err = s.db.ExecContext(ctx,
			`UPDATE messages SET processed = 1, intent = ? WHERE id = ?`, string(intent), id)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE messages SET processed = 1 WHERE id = ?`, id)
	}
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Query(ctx context.Context, f Filter) ([]StoredMessage, error) {
	query := `SELECT id, source, sender_name, sender_email, timestamp, subject, preview, intent, processed
		FROM messages WHERE 1=1`
	var args []any

	if f.Source != "" {
		query += " AND source = ?"
		args = append(args, string(f.Source))
	}
	if f.Intent != "" {
		query += " AND intent = ?"
		args = append(args, string(f.Intent))
	}
	if f.Unprocessed {
		query += " AND processed = 0"
	}
	query += " ORDER BY stored_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var sm StoredMessage
		var source, intent string
		var processed int
		if err := rows.Scan(&sm.ID, &source, &sm.SenderName, &sm.SenderEmail,
			&sm.Timestamp, &sm.Subject, &sm.Preview, &intent, &processed); err != nil {
			return nil, err
		}
		sm.Source = message.Source(source)
		sm.Intent = message.Intent(intent)
		sm.Processed = processed != 0
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) StoreInterview(ctx context.Context, iv Interview) error {
	status := iv.Status
	if status == "" {
		status = "scheduled"
	}

	id := fmt.Sprintf("INT_%s", time.Now().UTC().Format("20060102150405.000"))
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interviews (id, message_id, candidate_name, email, scheduled_date, status, calendar_link, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, iv.MessageID, iv.CandidateName, iv.Email, iv.ScheduledDate, status, iv.CalendarLink, iv.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert interview: %w", err)
	}
	return nil
}
