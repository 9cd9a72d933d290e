// Package notifier delivers work-session announcements to Slack
// incoming webhooks.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Notification is one work-session announcement.
type Notification struct {
	UserName      string
	TicketSubject string
	TicketID      string
	TicketURL     string
}

// ValidateWebhookURL checks that a Slack webhook URL is usable.
func ValidateWebhookURL(webhookURL string) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if !strings.HasPrefix(webhookURL, "https://") {
		return fmt.Errorf("webhook URL must use HTTPS")
	}
	return nil
}

// SlackNotifier sends notifications to Slack via per-organization
// incoming webhooks. Delivery failures are returned to the caller and
// never retried here; retry policy belongs to the orchestration layer.
type SlackNotifier struct {
	httpClient *http.Client
	username   string
	iconURL    string
}

// NewSlackNotifier creates a Slack notifier.
func NewSlackNotifier() *SlackNotifier {
	return &SlackNotifier{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		username: "Refari Notifier",
		iconURL:  "https://www.refari.co/favicon-32x32.png",
	}
}

// Send posts a notification to the webhook.
func (s *SlackNotifier) Send(ctx context.Context, webhookURL string, n Notification) error {
	payload := buildPayload(s.username, s.iconURL, n)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// slackMessage represents the Slack webhook payload.
type slackMessage struct {
	Text     string       `json:"text"` // fallback for clients without Block Kit
	Username string       `json:"username,omitempty"`
	IconURL  string       `json:"icon_url,omitempty"`
	Blocks   []slackBlock `json:"blocks"`
}

// slackBlock represents a Slack Block Kit block.
type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

// slackText represents text in Slack Block Kit.
type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// buildPayload builds the three-line announcement:
//
//	*{user}* has started working on *{subject}*
//	*Ticket ID:* {id}
//	*Ticket URL:* {url}
func buildPayload(username, iconURL string, n Notification) slackMessage {
	message := fmt.Sprintf("*%s* has started working on *%s*\n*Ticket ID:* %s\n*Ticket URL:* %s",
		n.UserName, n.TicketSubject, n.TicketID, n.TicketURL)

	return slackMessage{
		Text:     message,
		Username: username,
		IconURL:  iconURL,
		Blocks: []slackBlock{
			{
				Type: "section",
				Text: &slackText{
					Type: "mrkdwn",
					Text: message,
				},
			},
		},
	}
}
