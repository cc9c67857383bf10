package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/adilet/commhub/internal/config"
	"github.com/adilet/commhub/internal/googleauth"
	"github.com/adilet/commhub/internal/message"
)

const (
	messagesSheet   = "Messages"
	interviewsSheet = "Interviews"
	statsSheet      = "Stats"
)

var messageHeaders = []any{
	"ID", "Source", "Sender Name", "Sender Email",
	"Timestamp", "Subject", "Preview", "Intent", "Processed", "Link",
}

var interviewHeaders = []any{
	"ID", "Message ID", "Candidate Name", "Email",
	"Scheduled Date", "Status", "Calendar Link", "Notes",
}

var statsHeaders = []any{
	"Date", "Emails", "LinkedIn", "Handshake", "Other", "Total", "Interview Requests",
}

// statsColumn maps a source to its Stats column (1-based). Chat platforms
// share the Other column.
func statsColumn(source message.Source) int {
	switch source {
	case message.SourceGmail:
		return 2
	case message.SourceLinkedIn:
		return 3
	case message.SourceHandshake:
		return 4
	default:
		return 5
	}
}

// SheetsStorage persists messages to a Google Sheets spreadsheet with the
// Messages/Interviews/Stats worksheet layout.
type SheetsStorage struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheetsStorage authenticates and ensures the worksheet layout exists.
func NewSheetsStorage(ctx context.Context, cfg config.SheetsConfig) (*SheetsStorage, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID not configured")
	}

	client, err := googleauth.Client(ctx, cfg.CredentialsPath, cfg.TokenPath, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("sheets oauth client: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	s := &SheetsStorage{svc: svc, spreadsheetID: cfg.SpreadsheetID}
	if err := s.ensureWorksheets(ctx); err != nil {
		return nil, fmt.Errorf("ensure worksheets: %w", err)
	}
	return s, nil
}

func (s *SheetsStorage) ensureWorksheets(ctx context.Context) error {
	doc, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}

	existing := make(map[string]bool)
	for _, sh := range doc.Sheets {
		existing[sh.Properties.Title] = true
	}

	required := map[string][]any{
		messagesSheet:   messageHeaders,
		interviewsSheet: interviewHeaders,
		statsSheet:      statsHeaders,
	}

	for name, headers := range required {
		if existing[name] {
			continue
		}
		slog.Info("Creating worksheet", "name", name)

		_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: name},
				},
			}},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("add worksheet %s: %w", name, err)
		}

		if err := s.appendRow(ctx, name, headers); err != nil {
			return fmt.Errorf("write %s headers: %w", name, err)
		}
	}
	return nil
}

func (s *SheetsStorage) Store(ctx context.Context, msg *message.Message) error {
	ids, err := s.columnValues(ctx, messagesSheet, "A")
	if err != nil {
		return fmt.Errorf("read stored IDs: %w", err)
	}
	for _, id := range ids {
		if id == msg.ID {
			slog.Debug("Message already stored", "id", msg.ID)
			return nil
		}
	}

	// Keep the raw timestamp unless it is numeric, in which case a readable
	// form is friendlier in the sheet.
	timestamp := msg.Timestamp
	if t, ok := msg.Time(); ok {
		timestamp = t.Format("2006-01-02 15:04:05")
	}

	intent := msg.Intent
	if intent == "" {
		intent = message.IntentUnknown
	}

	row := []any{
		msg.ID, string(msg.Source), msg.SenderName, msg.SenderEmail,
		timestamp, msg.Subject, msg.Preview(previewLen), string(intent),
		"false", "",
	}
	if err := s.appendRow(ctx, messagesSheet, row); err != nil {
		return fmt.Errorf("append message row: %w", err)
	}

	if err := s.bumpStats(ctx, msg.Source); err != nil {
		// Stats are best effort; the message row is already safe.
		slog.Warn("Failed to update stats", "error", err)
	}

	slog.Info("Stored message", "id", msg.ID, "source", msg.Source)
	return nil
}

func (s *SheetsStorage) MarkProcessed(ctx context.Context, id string, intent message.Intent) error {
	ids, err := s.columnValues(ctx, messagesSheet, "A")
	if err != nil {
		return fmt.Errorf("read stored IDs: %w", err)
	}

	rowIndex := -1
	for i, v := range ids {
		if v == id {
			rowIndex = i + 2 // 1-based, after header
			break
		}
	}
	if rowIndex < 0 {
		slog.Warn("Message not found in sheet", "id", id)
		return nil
	}

	if err := s.updateCell(ctx, messagesSheet, fmt.Sprintf("I%d", rowIndex), "true"); err != nil {
		return fmt.Errorf("update processed flag: %w", err)
	}
	if intent != "" {
		if err := s.updateCell(ctx, messagesSheet, fmt.Sprintf("H%d", rowIndex), string(intent)); err != nil {
			return fmt.Errorf("update intent: %w", err)
		}
	}
	return nil
}

func (s *SheetsStorage) Query(ctx context.Context, f Filter) ([]StoredMessage, error) {
	vr, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, messagesSheet+"!A2:I").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read message rows: %w", err)
	}

	var out []StoredMessage
	for _, row := range vr.Values {
		sm := StoredMessage{
			ID:          cell(row, 0),
			Source:      message.Source(cell(row, 1)),
			SenderName:  cell(row, 2),
			SenderEmail: cell(row, 3),
			Timestamp:   cell(row, 4),
			Subject:     cell(row, 5),
			Preview:     cell(row, 6),
			Intent:      message.Intent(cell(row, 7)),
			Processed:   cell(row, 8) == "true",
		}

		if f.Source != "" && sm.Source != f.Source {
			continue
		}
		if f.Intent != "" && sm.Intent != f.Intent {
			continue
		}
		if f.Unprocessed && sm.Processed {
			continue
		}
		out = append(out, sm)
	}
	return out, nil
}

func (s *SheetsStorage) StoreInterview(ctx context.Context, iv Interview) error {
	status := iv.Status
	if status == "" {
		status = "scheduled"
	}

	id := fmt.Sprintf("INT_%s", time.Now().UTC().Format("20060102150405"))
	row := []any{
		id, iv.MessageID, iv.CandidateName, iv.Email,
		iv.ScheduledDate, status, iv.CalendarLink, iv.Notes,
	}
	if err := s.appendRow(ctx, interviewsSheet, row); err != nil {
		return fmt.Errorf("append interview row: %w", err)
	}

	if err := s.bumpInterviewCount(ctx); err != nil {
		slog.Warn("Failed to update interview stats", "error", err)
	}

	slog.Info("Stored interview", "id", id, "message_id", iv.MessageID)
	return nil
}

// bumpStats increments today's per-source and total counters, creating the
// day's row when it doesn't exist.
func (s *SheetsStorage) bumpStats(ctx context.Context, source message.Source) error {
	today := time.Now().Format("2006-01-02")

	dates, err := s.columnValues(ctx, statsSheet, "A")
	if err != nil {
		return err
	}

	rowIndex := -1
	for i, d := range dates {
		if d == today {
			rowIndex = i + 2
			break
		}
	}

	if rowIndex < 0 {
		row := []any{today, 0, 0, 0, 0, 1, 0}
		row[statsColumn(source)-1] = 1
		return s.appendRow(ctx, statsSheet, row)
	}

	vr, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID,
		fmt.Sprintf("%s!A%d:G%d", statsSheet, rowIndex, rowIndex)).Context(ctx).Do()
	if err != nil {
		return err
	}
	var row []any
	if len(vr.Values) > 0 {
		row = vr.Values[0]
	}

	col := statsColumn(source)
	if err := s.updateCell(ctx, statsSheet, cellRef(col, rowIndex), intCell(row, col-1)+1); err != nil {
		return err
	}
	return s.updateCell(ctx, statsSheet, cellRef(6, rowIndex), intCell(row, 5)+1)
}

func (s *SheetsStorage) bumpInterviewCount(ctx context.Context) error {
	today := time.Now().Format("2006-01-02")

	dates, err := s.columnValues(ctx, statsSheet, "A")
	if err != nil {
		return err
	}
	for i, d := range dates {
		if d != today {
			continue
		}
		rowIndex := i + 2
		vr, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID,
			fmt.Sprintf("%s!A%d:G%d", statsSheet, rowIndex, rowIndex)).Context(ctx).Do()
		if err != nil {
			return err
		}
		var row []any
		if len(vr.Values) > 0 {
			row = vr.Values[0]
		}
		return s.updateCell(ctx, statsSheet, cellRef(7, rowIndex), intCell(row, 6)+1)
	}
	return s.appendRow(ctx, statsSheet, []any{today, 0, 0, 0, 0, 0, 1})
}

func (s *SheetsStorage) appendRow(ctx context.Context, sheet string, row []any) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, sheet+"!A1", &sheets.ValueRange{
		Values: [][]any{row},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *SheetsStorage) updateCell(ctx context.Context, sheet, ref string, value any) error {
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID,
		fmt.Sprintf("%s!%s", sheet, ref), &sheets.ValueRange{
			Values: [][]any{{value}},
		}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// columnValues returns the values of one column, excluding the header row.
func (s *SheetsStorage) columnValues(ctx context.Context, sheet, column string) ([]string, error) {
	vr, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID,
		fmt.Sprintf("%s!%s2:%s", sheet, column, column)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(vr.Values))
	for _, row := range vr.Values {
		out = append(out, cell(row, 0))
	}
	return out, nil
}

func cell(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	s, _ := row[i].(string)
	return s
}

func intCell(row []any, i int) int {
	raw := cell(row, i)
	var n int
	fmt.Sscanf(raw, "%d", &n)
	return n
}

func cellRef(col, row int) string {
	return fmt.Sprintf("%c%d", 'A'+col-1, row)
}
