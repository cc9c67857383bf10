package connector

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/adilet/commhub/internal/config"
	"github.com/adilet/commhub/internal/googleauth"
	"github.com/adilet/commhub/internal/message"
)

// GmailConnector fetches unread mail and can send scheduling replies.
type GmailConnector struct {
	base
	cfg     config.GmailConfig
	service *gmail.Service
}

// NewGmailConnector creates an unconnected Gmail connector; the service is
// initialized lazily on first use so a misconfigured account degrades to a
// failed fetch instead of a construction error.
func NewGmailConnector(cfg config.GmailConfig) *GmailConnector {
	return &GmailConnector{
		base: newBase("gmail", message.SourceGmail),
		cfg:  cfg,
	}
}

func (g *GmailConnector) ensureService(ctx context.Context) error {
	if g.service != nil {
		return nil
	}

	client, err := googleauth.Client(ctx, g.cfg.CredentialsPath, g.cfg.TokenPath, gmail.GmailModifyScope)
	if err != nil {
		return fmt.Errorf("gmail oauth client: %w", err)
	}

	g.service, err = gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return fmt.Errorf("create gmail service: %w", err)
	}
	return nil
}

func (g *GmailConnector) FetchMessages(ctx context.Context) ([]*message.Message, error) {
	if err := g.ensureService(ctx); err != nil {
		return nil, err
	}

	maxResults := g.cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}

	list, err := g.service.Users.Messages.List("me").
		Q("is:unread").
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	var out []*message.Message
	for _, ref := range list.Messages {
		msg, err := g.fetchOne(ctx, ref.Id)
		if err != nil {
			// One malformed message is dropped, not the batch.
			slog.Warn("Skipping Gmail message", "message_id", ref.Id, "error", err)
			continue
		}
		out = append(out, msg)
	}

	slog.Info("Fetched Gmail messages", "count", len(out))
	return out, nil
}

func (g *GmailConnector) fetchOne(ctx context.Context, id string) (*message.Message, error) {
	full, err := g.service.Users.Messages.Get("me", id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}

	var from, subject string
	for _, h := range full.Payload.Headers {
		switch h.Name {
		case "From":
			from = h.Value
		case "Subject":
			subject = h.Value
		}
	}

	m, err := message.New(message.SourceGmail, full.Id, senderNameFromHeader(from), emailFromHeader(from))
	if err != nil {
		return nil, err
	}
	m.SetEpochMillis(full.InternalDate)
	m.Subject = subject
	m.Content = extractBody(full.Payload)
	m.RawData["thread_id"] = full.ThreadId
	m.RawData["labels"] = strings.Join(full.LabelIds, ",")
	m.RawData["snippet"] = full.Snippet
	return m, nil
}

// SendReply sends a plain-text mail through the authenticated account.
func (g *GmailConnector) SendReply(ctx context.Context, recipient, subject, body string) error {
	if err := g.ensureService(ctx); err != nil {
		return err
	}

	raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		recipient, subject, body)

	_, err := g.service.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	slog.Info("Sent Gmail reply", "recipient", recipient, "subject", subject)
	return nil
}

// extractBody walks the MIME parts for the first text/plain payload.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if payload.MimeType == "text/plain" && payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			return string(data)
		}
	}
	for _, part := range payload.Parts {
		if body := extractBody(part); body != "" {
			return body
		}
	}
	return ""
}

// senderNameFromHeader extracts the display name from a From header,
// falling back to the whole header when there is no bracketed address.
func senderNameFromHeader(from string) string {
	if i := strings.Index(from, "<"); i >= 0 {
		return strings.Trim(strings.TrimSpace(from[:i]), `"`)
	}
	return strings.TrimSpace(from)
}

// emailFromHeader extracts the address from a "Name <addr>" From header.
func emailFromHeader(from string) string {
	start := strings.Index(from, "<")
	end := strings.Index(from, ">")
	if start >= 0 && end > start {
		return from[start+1 : end]
	}
	return strings.TrimSpace(from)
}
