// Package ticket maps opaque Hubstaff task metadata to a concrete
// ticket in Freshdesk or GitLab.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/dmritesh/Refari-Notifier/internal/hubstaff"
)

// ErrTicketNotFound means no ticket identifier could be extracted from
// the task metadata. It is the only way resolution can fail; a detail
// fetch failure always degrades to a constructed URL.
var ErrTicketNotFound = errors.New("no ticket id in task metadata")

// Source identifies the ticketing backend a ticket belongs to.
type Source string

const (
	SourceFreshdesk Source = "freshdesk"
	SourceGitLab    Source = "gitlab"
)

// Ticket is a resolved ticket: always has a subject and a URL.
type Ticket struct {
	ID      string
	Subject string
	URL     string
	Source  Source
}

// Config is the organization's decrypted ticketing configuration.
type Config struct {
	FreshdeskDomain   string
	FreshdeskAPIKey   string
	GitLabDomain      string
	GitLabProjectPath string
	GitLabAPIKey      string
}

// FreshdeskAPI fetches tickets from the helpdesk backend.
type FreshdeskAPI interface {
	GetTicket(ctx context.Context, domain, apiKey, ticketID string) (*FreshdeskTicket, error)
}

// GitLabAPI fetches issues from the project-tracker backend.
type GitLabAPI interface {
	GetIssue(ctx context.Context, domain, apiKey, projectPath, issueIID string) (*GitLabIssue, error)
}

// Resolver extracts a ticket id from task metadata, classifies the
// owning backend, and fetches display details with a deterministic
// fallback when the backend is unreachable.
type Resolver struct {
	freshdesk FreshdeskAPI
	gitlab    GitLabAPI
}

// NewResolver creates a resolver over the two ticketing backends.
func NewResolver(freshdesk FreshdeskAPI, gitlab GitLabAPI) *Resolver {
	return &Resolver{freshdesk: freshdesk, gitlab: gitlab}
}

var (
	digitsPattern  = regexp.MustCompile(`\d+`)
	bracketPattern = regexp.MustCompile(`\[#?(\d+)\]`)
)

// maxTicketIDDigits rejects numeric runs that look like internal record
// numbers rather than short human-facing ticket numbers.
const maxTicketIDDigits = 8

// ExtractTicketID extracts the ticket identifier from task metadata.
// Precedence: alternate remote id, remote id (numeric run shorter than
// eight digits), then a bracketed [#123] or [123] pattern in the name.
func ExtractTicketID(task *hubstaff.TaskDetail) (string, bool) {
	for _, field := range []string{task.RemoteAlternateID, task.RemoteID} {
		if m := digitsPattern.FindString(field); m != "" && len(m) < maxTicketIDDigits {
			return m, true
		}
	}
	if m := bracketPattern.FindStringSubmatch(task.Name); m != nil {
		return m[1], true
	}
	return "", false
}

// Resolve produces a ticket for the task, or ErrTicketNotFound when no
// identifier can be extracted.
func (r *Resolver) Resolve(ctx context.Context, cfg Config, task *hubstaff.TaskDetail) (*Ticket, error) {
	ticketID, ok := ExtractTicketID(task)
	if !ok {
		return nil, ErrTicketNotFound
	}

	if isGitLabTask(cfg, task) {
		return r.resolveGitLab(ctx, cfg, task, ticketID), nil
	}
	return r.resolveFreshdesk(ctx, cfg, task, ticketID), nil
}

// isGitLabTask classifies the task's owning backend. A task belongs to
// GitLab when its normalized project name contains the configured
// project path, or when the "gitlab" brand token appears in the project
// name or either remote identifier.
func isGitLabTask(cfg Config, task *hubstaff.TaskDetail) bool {
	if cfg.GitLabProjectPath != "" &&
		strings.Contains(normalize(task.ProjectName), normalize(cfg.GitLabProjectPath)) {
		return true
	}
	if strings.Contains(strings.ToLower(task.ProjectName), "gitlab") {
		return true
	}
	if strings.Contains(strings.ToLower(task.RemoteID), "gitlab") ||
		strings.Contains(strings.ToLower(task.RemoteAlternateID), "gitlab") {
		return true
	}
	return false
}

// normalize lower-cases and strips non-alphanumerics so that project
// names like "Refari / Widget" match a path like "refari/widget".
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (r *Resolver) resolveGitLab(ctx context.Context, cfg Config, task *hubstaff.TaskDetail, ticketID string) *Ticket {
	domain := cfg.GitLabDomain
	if domain == "" {
		domain = "gitlab.com"
	}

	subject := task.Name
	var ticketURL string

	if cfg.GitLabAPIKey != "" && cfg.GitLabProjectPath != "" {
		issue, err := r.gitlab.GetIssue(ctx, domain, cfg.GitLabAPIKey, cfg.GitLabProjectPath, ticketID)
		if err != nil {
			log.Printf("failed to fetch gitlab issue %s, using fallback: %v", ticketID, err)
		} else {
			subject = issue.Title
			ticketURL = issue.WebURL
		}
	}

	if ticketURL == "" {
		switch {
		case strings.HasPrefix(task.RemoteID, "http"):
			ticketURL = task.RemoteID
		case strings.HasPrefix(task.RemoteAlternateID, "http"):
			ticketURL = task.RemoteAlternateID
		case cfg.GitLabProjectPath != "":
			ticketURL = fmt.Sprintf("https://%s/%s/-/issues/%s", domain, cfg.GitLabProjectPath, ticketID)
		default:
			ticketURL = fmt.Sprintf("https://%s/search?search=%s", domain, ticketID)
		}
	}

	return &Ticket{ID: ticketID, Subject: subject, URL: ticketURL, Source: SourceGitLab}
}

func (r *Resolver) resolveFreshdesk(ctx context.Context, cfg Config, task *hubstaff.TaskDetail, ticketID string) *Ticket {
	fd, err := r.freshdesk.GetTicket(ctx, cfg.FreshdeskDomain, cfg.FreshdeskAPIKey, ticketID)
	if err != nil {
		log.Printf("failed to fetch freshdesk ticket %s, using task name as fallback: %v", ticketID, err)
		return &Ticket{
			ID:      ticketID,
			Subject: task.Name,
			URL:     FreshdeskTicketURL(cfg.FreshdeskDomain, ticketID),
			Source:  SourceFreshdesk,
		}
	}

	return &Ticket{
		ID:      ticketID,
		Subject: fd.Subject,
		URL:     FreshdeskTicketURL(cfg.FreshdeskDomain, fmt.Sprintf("%d", fd.ID)),
		Source:  SourceFreshdesk,
	}
}
