package organizations

import (
	"fmt"
	"strings"
)

const (
	maxNameLength = 200
	maxGapMinutes = 24 * 60
)

func validateCreate(req *OrganizationRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if req.SlackWebhookURL == "" {
		return fmt.Errorf("slack_webhook_url is required")
	}
	return validateCommon(req)
}

func validateUpdate(req *OrganizationRequest) error {
	return validateCommon(req)
}

func validateCommon(req *OrganizationRequest) error {
	if len(req.Name) > maxNameLength {
		return fmt.Errorf("name must be at most %d characters", maxNameLength)
	}
	if req.NotificationGapMinutes < 0 || req.NotificationGapMinutes > maxGapMinutes {
		return fmt.Errorf("notification_gap_minutes must be between 0 and %d", maxGapMinutes)
	}
	if req.SlackWebhookURL != "" && !strings.HasPrefix(req.SlackWebhookURL, "https://") {
		return fmt.Errorf("slack_webhook_url must use HTTPS")
	}
	if req.FreshdeskDomain != "" && strings.ContainsAny(req.FreshdeskDomain, "/?#") {
		return fmt.Errorf("freshdesk_domain must be a bare hostname")
	}
	if req.GitLabDomain != "" && strings.ContainsAny(req.GitLabDomain, "/?#") {
		return fmt.Errorf("gitlab_domain must be a bare hostname")
	}
	return nil
}
