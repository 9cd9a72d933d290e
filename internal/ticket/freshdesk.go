package ticket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FreshdeskTicket is the subset of a Freshdesk ticket the notifier needs.
type FreshdeskTicket struct {
	ID      int64  `json:"id"`
	Subject string `json:"subject"`
}

// FreshdeskClient fetches tickets from the Freshdesk v2 API.
type FreshdeskClient struct {
	httpClient *http.Client
	scheme     string // overridable for tests
}

// NewFreshdeskClient creates a Freshdesk API client.
func NewFreshdeskClient() *FreshdeskClient {
	return &FreshdeskClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		scheme:     "https",
	}
}

// GetTicket fetches a ticket by id from the organization's helpdesk domain.
func (c *FreshdeskClient) GetTicket(ctx context.Context, domain, apiKey, ticketID string) (*FreshdeskTicket, error) {
	endpoint := fmt.Sprintf("%s://%s/api/v2/tickets/%s", c.scheme, domain, ticketID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// Freshdesk uses basic auth with the API key as username and "X" as password.
	auth := base64.StdEncoding.EncodeToString([]byte(apiKey + ":X"))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("freshdesk API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var ticket FreshdeskTicket
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &ticket, nil
}

// FreshdeskTicketURL returns the agent-facing URL for a ticket.
func FreshdeskTicketURL(domain, ticketID string) string {
	return fmt.Sprintf("https://%s/a/tickets/%s", domain, ticketID)
}
