// Package models defines the persistence entities for the notifier.
package models

import "time"

// DefaultNotificationGapMinutes is the session gap used when an
// organization has no explicit override.
const DefaultNotificationGapMinutes = 120

// Organization is one tenant: a Hubstaff organization wired to a Slack
// webhook and a ticketing backend. Secret fields hold AES-GCM envelopes
// produced by the security package and are never exposed in JSON.
type Organization struct {
	ID                      string     `json:"id"`
	Name                    string     `json:"name"`
	IsActive                bool       `json:"is_active"`
	NotificationGapMinutes  int        `json:"notification_gap_minutes"`
	FreshdeskDomain         string     `json:"freshdesk_domain"`
	FreshdeskAPIKey         []byte     `json:"-"`
	SlackWebhookURL         []byte     `json:"-"`
	GitLabDomain            string     `json:"gitlab_domain,omitempty"`
	GitLabProjectPath       string     `json:"gitlab_project_path,omitempty"`
	GitLabAPIKey            []byte     `json:"-"`
	HubstaffOrgID           string     `json:"hubstaff_org_id,omitempty"`
	HubstaffAccessToken     []byte     `json:"-"`
	HubstaffRefreshToken    []byte     `json:"-"`
	HubstaffTokenExpiresAt  *time.Time `json:"hubstaff_token_expires_at,omitempty"`
	LastCheckedAt           *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// NewOrganization creates an Organization with initialized timestamps
// and the default notification gap.
func NewOrganization(name string) *Organization {
	now := time.Now()
	return &Organization{
		Name:                   name,
		IsActive:               true,
		NotificationGapMinutes: DefaultNotificationGapMinutes,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

// SessionGap returns the configured notification gap as a duration.
func (o *Organization) SessionGap() time.Duration {
	minutes := o.NotificationGapMinutes
	if minutes <= 0 {
		minutes = DefaultNotificationGapMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// HasHubstaffCredentials reports whether the organization has completed
// the OAuth flow at least once.
func (o *Organization) HasHubstaffCredentials() bool {
	return len(o.HubstaffAccessToken) > 0 && len(o.HubstaffRefreshToken) > 0
}
