package connector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slack-go/slack"

	"github.com/adilet/commhub/internal/config"
	"github.com/adilet/commhub/internal/message"
)

// slackUser caches the profile fields the connector needs per user ID.
type slackUser struct {
	name  string
	email string
}

// SlackConnector fetches recent direct messages through the Web API.
type SlackConnector struct {
	base
	cfg       config.SlackConfig
	api       *slack.Client
	userCache map[string]slackUser
}

func NewSlackConnector(cfg config.SlackConfig) *SlackConnector {
	return &SlackConnector{
		base:      newBase("slack", message.SourceSlack),
		cfg:       cfg,
		api:       slack.New(cfg.BotToken),
		userCache: make(map[string]slackUser),
	}
}

func (s *SlackConnector) FetchMessages(ctx context.Context) ([]*message.Message, error) {
	daysBack := s.cfg.DaysBack
	if daysBack <= 0 {
		daysBack = 7
	}
	oldest := time.Now().AddDate(0, 0, -daysBack)

	channels, _, err := s.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
		Types: []string{"im"},
		Limit: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	var out []*message.Message
	for _, ch := range channels {
		history, err := s.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: ch.ID,
			Oldest:    fmt.Sprintf("%d.000000", oldest.Unix()),
			Limit:     100,
		})
		if err != nil {
			slog.Warn("Skipping Slack channel", "channel", ch.ID, "error", err)
			continue
		}

		for _, raw := range history.Messages {
			m, err := s.normalize(ctx, ch.ID, raw)
			if err != nil {
				slog.Warn("Skipping Slack message", "channel", ch.ID, "error", err)
				continue
			}
			if m != nil {
				out = append(out, m)
			}
		}
	}

	slog.Info("Fetched Slack messages", "count", len(out))
	return out, nil
}

// normalize maps one history entry to the canonical shape. It returns
// (nil, nil) for entries the pipeline should never see: bot posts, edits
// and other subtyped events.
func (s *SlackConnector) normalize(ctx context.Context, channelID string, raw slack.Message) (*message.Message, error) {
	if raw.User == "" || raw.SubType != "" || raw.BotID != "" {
		return nil, nil
	}
	if raw.Text == "" {
		return nil, nil
	}

	user := s.resolveUser(ctx, raw.User)

	m, err := message.New(message.SourceSlack, raw.Timestamp, user.name, user.email)
	if err != nil {
		return nil, err
	}
	m.Timestamp = raw.Timestamp // Slack ts is epoch seconds with a suffix; kept raw
	m.Subject = "Direct message"
	m.Content = raw.Text
	m.RawData["channel"] = channelID
	m.RawData["user"] = raw.User
	m.RawData["ts"] = raw.Timestamp
	return m, nil
}

func (s *SlackConnector) resolveUser(ctx context.Context, userID string) slackUser {
	if u, ok := s.userCache[userID]; ok {
		return u
	}

	info, err := s.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		slog.Warn("Failed to resolve Slack user", "user_id", userID, "error", err)
		return slackUser{name: userID}
	}

	name := info.RealName
	if name == "" {
		name = info.Name
	}

	u := slackUser{name: name, email: info.Profile.Email}
	s.userCache[userID] = u
	return u
}

// SendReply delivers a reply to the user owning the given email address.
// Replies are addressed by email while chat.postMessage wants a channel ID,
// so the address is resolved through users.lookupByEmail and the DM channel
// is opened (or reopened) before posting. Slack has no subject line; the
// subject is folded into the body when set.
func (s *SlackConnector) SendReply(ctx context.Context, recipient, subject, body string) error {
	user, err := s.api.GetUserByEmailContext(ctx, recipient)
	if err != nil {
		return fmt.Errorf("lookup user by email: %w", err)
	}

	channel, _, _, err := s.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{user.ID},
	})
	if err != nil {
		return fmt.Errorf("open DM channel: %w", err)
	}

	text := body
	if subject != "" {
		text = fmt.Sprintf("*%s*\n%s", subject, body)
	}

	_, _, err = s.api.PostMessageContext(ctx, channel.ID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}
