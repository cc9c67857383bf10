package connector

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"github.com/adilet/commhub/internal/config"
	"github.com/adilet/commhub/internal/message"
)

// TelegramConnector pulls recent dialog history as a userbot. Unlike a
// long-lived update listener it connects, reads the latest messages of the
// most recent dialogs, and disconnects when the batch fetch returns.
type TelegramConnector struct {
	base
	cfg config.TelegramConfig
}

func NewTelegramConnector(cfg config.TelegramConfig) *TelegramConnector {
	return &TelegramConnector{
		base: newBase("telegram", message.SourceTelegram),
		cfg:  cfg,
	}
}

func (t *TelegramConnector) FetchMessages(ctx context.Context) ([]*message.Message, error) {
	if err := os.MkdirAll(t.cfg.DataPath, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	client := telegram.NewClient(t.cfg.AppID, t.cfg.AppHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{
			Path: filepath.Join(t.cfg.DataPath, "session.json"),
		},
	})

	var out []*message.Message
	err := client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			if err := t.authenticate(ctx, client); err != nil {
				return fmt.Errorf("authenticate: %w", err)
			}
		}

		out, err = t.fetchDialogs(ctx, client.API())
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Fetched Telegram messages", "count", len(out))
	return out, nil
}

func (t *TelegramConnector) fetchDialogs(ctx context.Context, api *tg.Client) ([]*message.Message, error) {
	limit := t.cfg.Dialogs
	if limit <= 0 {
		limit = 20
	}
	perPeer := t.cfg.PerPeer
	if perPeer <= 0 {
		perPeer = 20
	}

	raw, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		Limit:      limit,
		OffsetPeer: &tg.InputPeerEmpty{},
	})
	if err != nil {
		return nil, fmt.Errorf("get dialogs: %w", err)
	}

	dialogs, users, err := splitDialogs(raw)
	if err != nil {
		return nil, err
	}

	var out []*message.Message
	for _, dc := range dialogs {
		d, ok := dc.(*tg.Dialog)
		if !ok {
			continue
		}
		peerUser, ok := d.Peer.(*tg.PeerUser)
		if !ok {
			continue // direct chats only, same as the other channels
		}
		user, ok := users[peerUser.UserID]
		if !ok || user.Bot {
			continue
		}

		history, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:  &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash},
			Limit: perPeer,
		})
		if err != nil {
			slog.Warn("Skipping Telegram dialog", "user_id", user.ID, "error", err)
			continue
		}

		for _, mc := range historyMessages(history) {
			msg, ok := mc.(*tg.Message)
			if !ok || msg.Out || msg.Message == "" {
				continue
			}

			m, err := message.New(message.SourceTelegram,
				fmt.Sprintf("tg_%d_%d", user.ID, msg.ID), formatTelegramUser(user), "")
			if err != nil {
				continue
			}
			m.SetEpochMillis(int64(msg.Date) * 1000)
			m.Content = msg.Message
			m.RawData["peer_id"] = strconv.FormatInt(user.ID, 10)
			m.RawData["message_id"] = strconv.Itoa(msg.ID)
			out = append(out, m)
		}
	}

	return out, nil
}

func splitDialogs(raw tg.MessagesDialogsClass) ([]tg.DialogClass, map[int64]*tg.User, error) {
	var dialogs []tg.DialogClass
	var userList []tg.UserClass

	switch d := raw.(type) {
	case *tg.MessagesDialogs:
		dialogs, userList = d.Dialogs, d.Users
	case *tg.MessagesDialogsSlice:
		dialogs, userList = d.Dialogs, d.Users
	default:
		return nil, nil, fmt.Errorf("unexpected dialogs type %T", raw)
	}

	users := make(map[int64]*tg.User, len(userList))
	for _, uc := range userList {
		if u, ok := uc.(*tg.User); ok {
			users[u.ID] = u
		}
	}
	return dialogs, users, nil
}

func historyMessages(raw tg.MessagesMessagesClass) []tg.MessageClass {
	switch h := raw.(type) {
	case *tg.MessagesMessages:
		return h.Messages
	case *tg.MessagesMessagesSlice:
		return h.Messages
	case *tg.MessagesChannelMessages:
		return h.Messages
	default:
		return nil
	}
}

func (t *TelegramConnector) authenticate(ctx context.Context, client *telegram.Client) error {
	flow := auth.NewFlow(
		terminalAuth{phone: t.cfg.Phone},
		auth.SendCodeOptions{},
	)
	return client.Auth().IfNecessary(ctx, flow)
}

func formatTelegramUser(user *tg.User) string {
	if user.FirstName != "" {
		name := user.FirstName
		if user.LastName != "" {
			name += " " + user.LastName
		}
		return name
	}
	if user.Username != "" {
		return "@" + user.Username
	}
	return fmt.Sprintf("User#%d", user.ID)
}

// terminalAuth implements auth.UserAuthenticator for terminal-based auth.
type terminalAuth struct {
	phone string
}

func (a terminalAuth) Phone(_ context.Context) (string, error) {
	return a.phone, nil
}

func (a terminalAuth) Password(_ context.Context) (string, error) {
	fmt.Print("Enter 2FA password: ")
	return readLine()
}

func (a terminalAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	fmt.Print("Enter Telegram code: ")
	return readLine()
}

func (a terminalAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, fmt.Errorf("sign up not supported")
}

func (a terminalAuth) AcceptTermsOfService(_ context.Context, _ tg.HelpTermsOfService) error {
	return nil
}

func readLine() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
