// Package hubstaff provides the client for the Hubstaff v2 API: the
// activity feed, task and user metadata lookups, and OAuth token
// management.
package hubstaff

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Hubstaff v2 API root.
const DefaultBaseURL = "https://api.hubstaff.com/v2"

// Activity is one reported unit of tracked work from the activity feed.
type Activity struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	TaskID   int64     `json:"task_id"`
	TimeSlot time.Time `json:"time_slot"`
}

// TimeEntryID returns the globally unique identifier of this activity
// occurrence, used as the deduplication ledger key.
func (a Activity) TimeEntryID() string {
	return fmt.Sprintf("%d", a.ID)
}

// TaskDetail is the task metadata needed for ticket resolution.
type TaskDetail struct {
	Name              string
	RemoteID          string
	RemoteAlternateID string
	ProjectID         int64
	ProjectName       string
}

// ClientConfig holds Hubstaff client configuration.
type ClientConfig struct {
	BaseURL           string        // API root (default: DefaultBaseURL)
	Timeout           time.Duration // per-request timeout (default: 30s)
	CacheTTL          time.Duration // user/task cache TTL (default: 1h)
	CacheSize         int           // max cached entries per cache (default: 1024)
	RequestsPerSecond float64       // API rate limit (default: 5)
}

func (c *ClientConfig) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 1024
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
}

// Client talks to the Hubstaff v2 API. User names and task details are
// served from bounded TTL caches; the feed itself is never cached.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	users      *ttlCache[int64, string]
	tasks      *ttlCache[int64, TaskDetail]
}

// NewClient creates a Hubstaff API client.
func NewClient(cfg ClientConfig) *Client {
	cfg.setDefaults()
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 10),
		users:      newTTLCache[int64, string](cfg.CacheTTL, cfg.CacheSize),
		tasks:      newTTLCache[int64, TaskDetail](cfg.CacheTTL, cfg.CacheSize),
	}
}

type activitiesResponse struct {
	Activities []Activity `json:"activities"`
	Pagination *struct {
		NextPageStartID int64 `json:"next_page_start_id"`
	} `json:"pagination"`
}

// Activities fetches all activities for the organization whose time slot
// falls in [start, stop], following pagination cursors. The feed returns
// activities in chronological order; that order is preserved.
func (c *Client) Activities(ctx context.Context, token, hubstaffOrgID string, start, stop time.Time) ([]Activity, error) {
	var all []Activity
	var cursor int64

	for {
		params := url.Values{}
		params.Set("time_slot[start]", start.UTC().Format(time.RFC3339))
		params.Set("time_slot[stop]", stop.UTC().Format(time.RFC3339))
		if cursor > 0 {
			params.Set("page_start_id", fmt.Sprintf("%d", cursor))
		}

		endpoint := fmt.Sprintf("%s/organizations/%s/activities?%s", c.baseURL, url.PathEscape(hubstaffOrgID), params.Encode())

		var page activitiesResponse
		if err := c.getJSON(ctx, token, endpoint, &page); err != nil {
			return nil, fmt.Errorf("fetch activities: %w", err)
		}

		all = append(all, page.Activities...)

		if page.Pagination == nil || page.Pagination.NextPageStartID == 0 {
			return all, nil
		}
		cursor = page.Pagination.NextPageStartID
	}
}

// UserName returns the display name for a Hubstaff user. Lookups are
// cached; on fetch failure a generic placeholder is returned because a
// missing name should not block a notification.
func (c *Client) UserName(ctx context.Context, token string, userID int64) string {
	if name, ok := c.users.get(userID); ok {
		return name
	}

	var resp struct {
		User struct {
			Name string `json:"name"`
		} `json:"user"`
	}
	endpoint := fmt.Sprintf("%s/users/%d", c.baseURL, userID)
	if err := c.getJSON(ctx, token, endpoint, &resp); err != nil {
		log.Printf("failed to fetch user name for %d: %v", userID, err)
		return fmt.Sprintf("User %d", userID)
	}

	c.users.put(userID, resp.User.Name)
	return resp.User.Name
}

// TaskDetail returns the metadata for a task, including its owning
// project name. Results are cached. A failed project lookup degrades to
// a placeholder name; a failed task lookup is an error because without
// task metadata the ticket cannot be resolved at all.
func (c *Client) TaskDetail(ctx context.Context, token string, taskID int64) (*TaskDetail, error) {
	if detail, ok := c.tasks.get(taskID); ok {
		return &detail, nil
	}

	var resp struct {
		Task struct {
			Summary           string `json:"summary"`
			RemoteID          string `json:"remote_id"`
			RemoteAlternateID string `json:"remote_alternate_id"`
			ProjectID         int64  `json:"project_id"`
		} `json:"task"`
	}
	endpoint := fmt.Sprintf("%s/tasks/%d", c.baseURL, taskID)
	if err := c.getJSON(ctx, token, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetch task %d: %w", taskID, err)
	}

	detail := TaskDetail{
		Name:              resp.Task.Summary,
		RemoteID:          resp.Task.RemoteID,
		RemoteAlternateID: resp.Task.RemoteAlternateID,
		ProjectID:         resp.Task.ProjectID,
		ProjectName:       "Unknown Project",
	}
	if detail.Name == "" {
		detail.Name = fmt.Sprintf("Task %d", taskID)
	}

	if detail.ProjectID != 0 {
		var projResp struct {
			Project struct {
				Name string `json:"name"`
			} `json:"project"`
		}
		projEndpoint := fmt.Sprintf("%s/projects/%d", c.baseURL, detail.ProjectID)
		if err := c.getJSON(ctx, token, projEndpoint, &projResp); err != nil {
			log.Printf("failed to fetch project %d for task %d: %v", detail.ProjectID, taskID, err)
		} else if projResp.Project.Name != "" {
			detail.ProjectName = projResp.Project.Name
		}
	}

	c.tasks.put(taskID, detail)
	return &detail, nil
}

func (c *Client) getJSON(ctx context.Context, token, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("hubstaff API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
