package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/adilet/commhub/internal/config"
	"github.com/adilet/commhub/internal/message"
)

const phantombusterAPIBase = "https://api.phantombuster.com/api/v2"

// LinkedInConnector retrieves LinkedIn inbox messages through a
// PhantomBuster scraping agent: launch the agent, poll until it finishes,
// then map its JSON output to canonical messages.
type LinkedInConnector struct {
	base
	cfg    config.LinkedInConfig
	client *http.Client
	apiURL string
}

// linkedinRow is one message row in the agent's output.
type linkedinRow struct {
	MessageID  string `json:"messageId"`
	Sender     string `json:"sender"`
	Email      string `json:"email"`
	Timestamp  string `json:"timestamp"`
	Message    string `json:"message"`
	ProfileURL string `json:"profileUrl"`
	ThreadURL  string `json:"threadUrl"`
}

func NewLinkedInConnector(cfg config.LinkedInConfig) *LinkedInConnector {
	return &LinkedInConnector{
		base:   newBase("linkedin", message.SourceLinkedIn),
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		apiURL: phantombusterAPIBase,
	}
}

func (l *LinkedInConnector) FetchMessages(ctx context.Context) ([]*message.Message, error) {
	containerID, err := l.launchAgent(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch agent: %w", err)
	}

	status, err := l.waitForCompletion(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if status != "finished" {
		return nil, fmt.Errorf("agent ended with status %q", status)
	}

	rows, err := l.fetchOutput(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("fetch agent output: %w", err)
	}

	var out []*message.Message
	for i, row := range rows {
		id := row.MessageID
		if id == "" {
			// The agent does not always emit stable IDs; synthesize one from
			// the thread and timestamp so dedup still works across runs.
			id = fmt.Sprintf("linkedin_%s_%s", row.ProfileURL, row.Timestamp)
		}

		m, err := message.New(message.SourceLinkedIn, id, row.Sender, row.Email)
		if err != nil {
			slog.Warn("Skipping LinkedIn row", "index", i, "error", err)
			continue
		}
		m.Timestamp = row.Timestamp
		m.Subject = fmt.Sprintf("LinkedIn message from %s", row.Sender)
		m.Content = row.Message
		m.RawData["profile_url"] = row.ProfileURL
		m.RawData["thread_url"] = row.ThreadURL
		out = append(out, m)
	}

	slog.Info("Fetched LinkedIn messages", "count", len(out))
	return out, nil
}

func (l *LinkedInConnector) launchAgent(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"id":        l.cfg.MessageAgentID,
		"arguments": map[string]any{},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.apiURL+"/container/launch", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Phantombuster-Key", l.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		ContainerID string `json:"containerId"`
	}
	if err := l.do(req, &result); err != nil {
		return "", err
	}
	if result.ContainerID == "" {
		return "", fmt.Errorf("launch returned no container id")
	}
	return result.ContainerID, nil
}

// waitForCompletion polls the container status every 10 seconds until it
// reaches a terminal state or the configured wait time runs out.
func (l *LinkedInConnector) waitForCompletion(ctx context.Context, containerID string) (string, error) {
	wait := time.Duration(l.cfg.WaitSeconds) * time.Second
	if wait <= 0 {
		wait = 5 * time.Minute
	}
	deadline := time.Now().Add(wait)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		status, err := l.containerStatus(ctx, containerID)
		if err != nil {
			return "", err
		}
		switch status {
		case "finished", "failed", "stopped":
			return status, nil
		}

		if time.Now().After(deadline) {
			return "timeout", nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *LinkedInConnector) containerStatus(ctx context.Context, containerID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/container/status?id=%s", l.apiURL, containerID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Phantombuster-Key", l.cfg.APIKey)

	var result struct {
		Status string `json:"status"`
	}
	if err := l.do(req, &result); err != nil {
		return "", err
	}
	return result.Status, nil
}

func (l *LinkedInConnector) fetchOutput(ctx context.Context, containerID string) ([]linkedinRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/container/output?id=%s", l.apiURL, containerID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Phantombuster-Key", l.cfg.APIKey)

	var result struct {
		Status string `json:"status"`
		Output string `json:"output"`
	}
	if err := l.do(req, &result); err != nil {
		return nil, err
	}
	if result.Status != "success" || result.Output == "" {
		return nil, fmt.Errorf("no output (status %q)", result.Status)
	}

	var rows []linkedinRow
	if err := json.Unmarshal([]byte(result.Output), &rows); err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	return rows, nil
}

func (l *LinkedInConnector) do(req *http.Request, out any) error {
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("phantombuster API: status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
