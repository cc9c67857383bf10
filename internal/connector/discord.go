package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/adilet/commhub/internal/config"
	"github.com/adilet/commhub/internal/message"
)

// DiscordConnector fetches direct messages as a bot user. The REST endpoints
// are enough for a batch pull; no gateway connection is opened. Discord never
// exposes sender email addresses, so the reply-by-email path is unreachable
// for this channel; SendReply targets a channel ID instead.
type DiscordConnector struct {
	base
	cfg     config.DiscordConfig
	session *discordgo.Session
	selfID  string
}

func NewDiscordConnector(cfg config.DiscordConfig) *DiscordConnector {
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		slog.Warn("Failed to initialize Discord session", "error", err)
	}
	return &DiscordConnector{
		base:    newBase("discord", message.SourceDiscord),
		cfg:     cfg,
		session: session,
	}
}

func (d *DiscordConnector) FetchMessages(ctx context.Context) ([]*message.Message, error) {
	if d.session == nil {
		return nil, fmt.Errorf("discord session not initialized")
	}
	if err := d.ensureSelfID(ctx); err != nil {
		return nil, err
	}

	daysBack := d.cfg.DaysBack
	if daysBack <= 0 {
		daysBack = 7
	}
	cutoff := time.Now().AddDate(0, 0, -daysBack)

	body, err := d.session.RequestWithBucketID("GET", discordgo.EndpointUserChannels("@me"), nil, discordgo.EndpointUserChannels(""), discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list DM channels: %w", err)
	}
	var channels []*discordgo.Channel
	if err := json.Unmarshal(body, &channels); err != nil {
		return nil, fmt.Errorf("list DM channels: %w", err)
	}

	var out []*message.Message
	for _, ch := range channels {
		if ch.Type != discordgo.ChannelTypeDM {
			continue
		}

		msgs, err := d.session.ChannelMessages(ch.ID, 100, "", "", "", discordgo.WithContext(ctx))
		if err != nil {
			slog.Warn("Skipping Discord channel", "channel", ch.ID, "error", err)
			continue
		}

		for _, raw := range msgs {
			if m := normalizeDiscordMessage(ch.ID, raw, d.selfID, cutoff); m != nil {
				out = append(out, m)
			}
		}
	}

	slog.Info("Fetched Discord messages", "count", len(out))
	return out, nil
}

// normalizeDiscordMessage maps one DM to the canonical shape. It returns nil
// for entries the pipeline should never see: own posts, bot posts, empty
// bodies and messages older than the cutoff.
func normalizeDiscordMessage(channelID string, raw *discordgo.Message, selfID string, cutoff time.Time) *message.Message {
	if raw == nil || raw.Author == nil {
		return nil
	}
	if raw.Author.ID == selfID || raw.Author.Bot {
		return nil
	}
	if raw.Content == "" {
		return nil
	}
	if !raw.Timestamp.IsZero() && raw.Timestamp.Before(cutoff) {
		return nil
	}

	m, err := message.New(message.SourceDiscord, raw.ID, raw.Author.Username, "")
	if err != nil {
		slog.Warn("Skipping Discord message", "error", err)
		return nil
	}
	m.Timestamp = raw.Timestamp.Format(time.RFC3339)
	m.Subject = fmt.Sprintf("DM from %s", raw.Author.Username)
	m.Content = raw.Content
	m.RawData["author_id"] = raw.Author.ID
	m.RawData["channel_id"] = channelID
	return m
}

// SendReply posts into the DM channel identified by recipient. The subject
// is dropped; Discord messages have no subject line.
func (d *DiscordConnector) SendReply(ctx context.Context, recipient, _, body string) error {
	if d.session == nil {
		return fmt.Errorf("discord session not initialized")
	}
	if _, err := d.session.ChannelMessageSend(recipient, body, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send DM: %w", err)
	}
	return nil
}

func (d *DiscordConnector) ensureSelfID(ctx context.Context) error {
	if d.selfID != "" {
		return nil
	}
	me, err := d.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("identify bot user: %w", err)
	}
	d.selfID = me.ID
	return nil
}
