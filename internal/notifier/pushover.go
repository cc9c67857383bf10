package notifier

import (
	"fmt"
	"log/slog"

	"github.com/gregdel/pushover"

	"github.com/adilet/commhub/internal/config"
	"github.com/adilet/commhub/internal/message"
)

// Notifier sends push alerts for messages that need attention.
type Notifier interface {
	// Notify sends a push notification for the given message.
	Notify(msg *message.Message) error
}

// PushoverNotifier sends notifications via Pushover.
type PushoverNotifier struct {
	app       *pushover.Pushover
	recipient *pushover.Recipient
}

// NewPushoverNotifier creates a new Pushover notifier.
func NewPushoverNotifier(cfg config.PushoverConfig) *PushoverNotifier {
	return &PushoverNotifier{
		app:       pushover.New(cfg.AppToken),
		recipient: pushover.NewRecipient(cfg.UserToken),
	}
}

// Notify sends a high-priority push for an actionable message.
func (p *PushoverNotifier) Notify(msg *message.Message) error {
	notification := &pushover.Message{
		Title:    formatTitle(msg),
		Message:  formatBody(msg),
		Priority: pushover.PriorityHigh,
		Sound:    pushover.SoundPersistent,
	}

	if url := getMessageURL(msg); url != "" {
		notification.URL = url
		notification.URLTitle = "Open in app"
	}

	response, err := p.app.SendMessage(notification, p.recipient)
	if err != nil {
		return fmt.Errorf("failed to send pushover notification: %w", err)
	}

	slog.Info("Pushover notification sent",
		"source", msg.Source,
		"sender", msg.SenderName,
		"status", response.Status)

	return nil
}

func formatTitle(msg *message.Message) string {
	icon := getSourceIcon(msg.Source)
	label := string(msg.Intent)
	if label == "" {
		label = string(message.IntentUnknown)
	}
	return fmt.Sprintf("%s %s [%s]: %s", icon, msg.Source, label, msg.SenderName)
}

func formatBody(msg *message.Message) string {
	body := msg.Content
	if msg.Subject != "" {
		body = msg.Subject + "\n" + body
	}
	if len(body) > 500 {
		body = body[:497] + "..."
	}
	return body
}

func getSourceIcon(source message.Source) string {
	switch source {
	case message.SourceGmail:
		return "📧"
	case message.SourceSlack:
		return "🔔"
	case message.SourceDiscord:
		return "🎮"
	case message.SourceLinkedIn:
		return "💼"
	case message.SourceHandshake:
		return "🤝"
	case message.SourceTelegram:
		return "✈️"
	default:
		return "📨"
	}
}

func getMessageURL(msg *message.Message) string {
	switch msg.Source {
	case message.SourceGmail:
		if msg.ID != "" {
			return fmt.Sprintf("https://mail.google.com/mail/u/0/#inbox/%s", msg.ID)
		}
	case message.SourceLinkedIn:
		if url := msg.RawData["thread_url"]; url != "" {
			return url
		}
	}
	return ""
}

// MockNotifier logs instead of sending. Used in dry runs.
type MockNotifier struct{}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(msg *message.Message) error {
	slog.Info("MOCK NOTIFICATION",
		"source", msg.Source,
		"sender", msg.SenderName,
		"intent", msg.Intent,
		"text", msg.Preview(100))
	return nil
}
