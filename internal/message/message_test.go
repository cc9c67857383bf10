package message

import (
	"errors"
	"testing"
	"time"
)

func TestNew_MissingID(t *testing.T) {
	_, err := New(SourceSlack, "", "Someone", "")
	if err == nil {
		t.Fatal("expected error for missing id")
	}
	var nerr *NormalizationError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NormalizationError, got %T", err)
	}
	if nerr.Source != SourceSlack {
		t.Errorf("expected source slack, got %s", nerr.Source)
	}
}

func TestNew_DefaultsOptionalFields(t *testing.T) {
	m, err := New(SourceDiscord, "123", "user", "")
	if err != nil {
		t.Fatal(err)
	}
	if m.RawData == nil {
		t.Error("expected non-nil RawData")
	}
	if m.SenderEmail != "" || m.Subject != "" || m.Content != "" {
		t.Error("expected empty-string defaults")
	}
}

func TestTime(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
		ok   bool
	}{
		{"epoch millis", "1712345678000", time.UnixMilli(1712345678000), true},
		{"iso 8601", "2025-03-15T14:00:00Z", time.Date(2025, 3, 15, 14, 0, 0, 0, time.UTC), true},
		{"empty", "", time.Time{}, false},
		{"garbage", "not a time", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Message{Timestamp: tt.raw}
			got, ok := m.Time()
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetEpochMillis_PreservesRawForm(t *testing.T) {
	var m Message
	m.SetEpochMillis(1712345678000)
	if m.Timestamp != "1712345678000" {
		t.Errorf("raw timestamp = %q", m.Timestamp)
	}
}

func TestPreview(t *testing.T) {
	m := Message{Content: "hello world"}
	if got := m.Preview(5); got != "hello..." {
		t.Errorf("Preview(5) = %q", got)
	}
	if got := m.Preview(100); got != "hello world" {
		t.Errorf("Preview(100) = %q", got)
	}
}
