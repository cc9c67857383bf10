package connector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/adilet/commhub/internal/config"
	"github.com/adilet/commhub/internal/message"
)

const handshakeLoginURL = "https://app.joinhandshake.com/login"

// HandshakeConnector scrapes the Handshake inbox with a headless browser.
// Handshake has no message API, so this mirrors what a user would do: log
// in, open Messages, and read each visible thread.
type HandshakeConnector struct {
	base
	cfg config.HandshakeConfig
}

func NewHandshakeConnector(cfg config.HandshakeConfig) *HandshakeConnector {
	return &HandshakeConnector{
		base: newBase("handshake", message.SourceHandshake),
		cfg:  cfg,
	}
}

func (h *HandshakeConnector) FetchMessages(ctx context.Context) ([]*message.Message, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", h.cfg.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// A stalled page load should fail this source's fetch, not hang the batch.
	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, 2*time.Minute)
	defer cancelTimeout()

	if err := h.login(browserCtx); err != nil {
		return nil, fmt.Errorf("handshake login: %w", err)
	}

	threads, err := h.readThreads(browserCtx)
	if err != nil {
		return nil, fmt.Errorf("read message threads: %w", err)
	}

	slog.Info("Fetched Handshake messages", "count", len(threads))
	return threads, nil
}

func (h *HandshakeConnector) login(ctx context.Context) error {
	return chromedp.Run(ctx,
		chromedp.Navigate(handshakeLoginURL),
		chromedp.WaitVisible(`#email`, chromedp.ByID),
		chromedp.SendKeys(`#email`, h.cfg.Username, chromedp.ByID),
		chromedp.SendKeys(`#password`, h.cfg.Password, chromedp.ByID),
		chromedp.Click(`[name="commit"]`, chromedp.ByQuery),
		chromedp.WaitVisible(`a[href*="messages"]`, chromedp.ByQuery),
	)
}

func (h *HandshakeConnector) readThreads(ctx context.Context) ([]*message.Message, error) {
	maxThreads := h.cfg.MaxThreads
	if maxThreads <= 0 {
		maxThreads = 10
	}

	if err := chromedp.Run(ctx,
		chromedp.Click(`a[href*="messages"]`, chromedp.ByQuery),
		chromedp.WaitVisible(`.message-thread`, chromedp.ByQuery),
	); err != nil {
		return nil, err
	}

	var out []*message.Message
	for i := 0; i < maxThreads; i++ {
		sel := fmt.Sprintf(`.message-thread:nth-of-type(%d)`, i+1)

		var exists bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(
			fmt.Sprintf(`document.querySelectorAll(".message-thread").length > %d`, i), &exists)); err != nil {
			return out, err
		}
		if !exists {
			break
		}

		var sender, content, timestamp string
		err := chromedp.Run(ctx,
			chromedp.Click(sel, chromedp.ByQuery),
			chromedp.WaitVisible(`.message-content`, chromedp.ByQuery),
			chromedp.Text(`.message-sender`, &sender, chromedp.ByQuery),
			chromedp.Text(`.message-content`, &content, chromedp.ByQuery),
			chromedp.Text(`.message-timestamp`, &timestamp, chromedp.ByQuery),
		)
		if err != nil {
			slog.Warn("Skipping Handshake thread", "index", i, "error", err)
			continue
		}

		// Handshake exposes no message IDs; position plus timestamp is the
		// best stable key available.
		id := fmt.Sprintf("handshake_%d_%s", i, strings.ReplaceAll(timestamp, " ", "_"))

		m, err := message.New(message.SourceHandshake, id, sender, "")
		if err != nil {
			continue
		}
		m.Timestamp = timestamp
		m.Content = content
		m.RawData["sender"] = sender
		m.RawData["timestamp"] = timestamp
		out = append(out, m)

		// Back to the list for the next thread.
		if err := chromedp.Run(ctx,
			chromedp.Click(`a[href*="messages"]`, chromedp.ByQuery),
			chromedp.WaitVisible(`.message-thread`, chromedp.ByQuery),
		); err != nil {
			return out, err
		}
	}

	return out, nil
}
