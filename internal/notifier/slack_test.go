package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSlackNotifier_Send(t *testing.T) {
	var captured slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json content type, got %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewSlackNotifier()
	err := n.Send(context.Background(), server.URL, Notification{
		UserName:      "Jane Doe",
		TicketSubject: "Fix login redirect",
		TicketID:      "4231",
		TicketURL:     "https://refari.freshdesk.com/a/tickets/4231",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if !strings.Contains(captured.Text, "*Jane Doe* has started working on *Fix login redirect*") {
		t.Errorf("unexpected first line in %q", captured.Text)
	}
	if !strings.Contains(captured.Text, "*Ticket ID:* 4231") {
		t.Errorf("missing ticket id line in %q", captured.Text)
	}
	if !strings.Contains(captured.Text, "*Ticket URL:* https://refari.freshdesk.com/a/tickets/4231") {
		t.Errorf("missing ticket url line in %q", captured.Text)
	}
	if captured.Username != "Refari Notifier" {
		t.Errorf("expected username Refari Notifier, got %q", captured.Username)
	}
	if len(captured.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(captured.Blocks))
	}
	if captured.Blocks[0].Type != "section" || captured.Blocks[0].Text.Type != "mrkdwn" {
		t.Errorf("unexpected block shape: %+v", captured.Blocks[0])
	}
	if captured.Blocks[0].Text.Text != captured.Text {
		t.Errorf("block text should match fallback text")
	}
}

func TestSlackNotifier_SendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no_service"))
	}))
	defer server.Close()

	n := NewSlackNotifier()
	err := n.Send(context.Background(), server.URL, Notification{UserName: "x"})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "status 404") {
		t.Errorf("expected status in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "no_service") {
		t.Errorf("expected body in error, got %v", err)
	}
}

func TestValidateWebhookURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid", "https://hooks.slack.com/services/T0/B0/xyz", false},
		{"empty", "", true},
		{"http", "http://hooks.slack.com/services/T0/B0/xyz", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWebhookURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWebhookURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
