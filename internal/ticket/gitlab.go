package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// GitLabIssue is the subset of a GitLab issue the notifier needs.
type GitLabIssue struct {
	IID    int64  `json:"iid"`
	Title  string `json:"title"`
	WebURL string `json:"web_url"`
}

// GitLabClient fetches issues from the GitLab v4 API.
type GitLabClient struct {
	httpClient *http.Client
	scheme     string // overridable for tests
}

// NewGitLabClient creates a GitLab API client.
func NewGitLabClient() *GitLabClient {
	return &GitLabClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		scheme:     "https",
	}
}

// GetIssue fetches an issue by project path and issue iid.
func (c *GitLabClient) GetIssue(ctx context.Context, domain, apiKey, projectPath, issueIID string) (*GitLabIssue, error) {
	// The project path is a single URL segment in the API, so "refari/widget"
	// becomes "refari%2Fwidget".
	endpoint := fmt.Sprintf("%s://%s/api/v4/projects/%s/issues/%s",
		c.scheme, domain, url.QueryEscape(projectPath), issueIID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("gitlab API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var issue GitLabIssue
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &issue, nil
}
