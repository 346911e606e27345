package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Slack posts incident notifications to an incoming-webhook URL.
type Slack struct {
	webhook string
	client  *http.Client
}

// NewSlack returns nil when no webhook is configured, which callers
// treat as "notifications off".
func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		webhook: webhook,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Slack) Send(ctx context.Context, title, text string) error {
	if s == nil {
		return fmt.Errorf("slack: not configured")
	}
	payload, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: fmt.Sprintf("*%s*\n%s", title, text)})
	if err != nil {
		return fmt.Errorf("slack: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhook, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("slack: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer resp.Body.Close()
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("slack: webhook returned %s", resp.Status)
	}
	return nil
}
