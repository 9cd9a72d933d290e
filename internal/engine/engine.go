package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmritesh/Refari-Notifier/internal/hubstaff"
	"github.com/dmritesh/Refari-Notifier/internal/metrics"
	"github.com/dmritesh/Refari-Notifier/internal/models"
	"github.com/dmritesh/Refari-Notifier/internal/notifier"
	"github.com/dmritesh/Refari-Notifier/internal/storage"
	"github.com/dmritesh/Refari-Notifier/internal/ticket"
)

const (
	// DefaultPollInterval is how often the feed is polled.
	DefaultPollInterval = time.Minute
	// DefaultLookback is the activity window fetched on each tick. It is
	// deliberately wider than the poll interval so missed ticks and feed
	// lag cannot lose activities; the ledger absorbs the overlap.
	DefaultLookback = 45 * time.Minute
	// DefaultRateLimit caps notifications per organization per minute.
	DefaultRateLimit = 10
)

// TokenSource yields a usable feed access token for an organization,
// refreshing it when close to expiry.
type TokenSource interface {
	ValidAccessToken(ctx context.Context, org *models.Organization) (string, error)
}

// ActivityFeed is the time-tracking API surface the poller consumes.
type ActivityFeed interface {
	Activities(ctx context.Context, token, hubstaffOrgID string, start, stop time.Time) ([]hubstaff.Activity, error)
	UserName(ctx context.Context, token string, userID int64) string
	TaskDetail(ctx context.Context, token string, taskID int64) (*hubstaff.TaskDetail, error)
}

// TicketResolver maps task metadata to a displayable ticket.
type TicketResolver interface {
	Resolve(ctx context.Context, cfg ticket.Config, task *hubstaff.TaskDetail) (*ticket.Ticket, error)
}

// Sender delivers one announcement to a chat webhook.
type Sender interface {
	Send(ctx context.Context, webhookURL string, n notifier.Notification) error
}

// Config holds poller tuning.
type Config struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Lookback     time.Duration `yaml:"lookback"`
	RateLimit    int           `yaml:"rate_limit"`
}

func (c *Config) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Lookback <= 0 {
		c.Lookback = DefaultLookback
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// Worker is the polling scheduler. One instance runs for the whole
// process; ticks are processed synchronously so they never overlap.
type Worker struct {
	store    storage.Storage
	tokens   TokenSource
	feed     ActivityFeed
	resolver TicketResolver
	sender   Sender
	limiter  *notifier.RateLimiter
	cfg      Config

	lastTick atomic.Int64
	now      func() time.Time
}

// NewWorker creates the polling worker.
func NewWorker(store storage.Storage, tokens TokenSource, feed ActivityFeed, resolver TicketResolver, sender Sender, cfg Config) *Worker {
	cfg.setDefaults()
	return &Worker{
		store:    store,
		tokens:   tokens,
		feed:     feed,
		resolver: resolver,
		sender:   sender,
		limiter:  notifier.NewRateLimiter(cfg.RateLimit, time.Minute),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run polls until the context is canceled. The first cycle runs
// immediately; later cycles fire on the ticker. A cycle that runs
// longer than the interval simply delays the next one.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("poller started: interval=%s lookback=%s", w.cfg.PollInterval, w.cfg.Lookback)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("poller stopped")
			return nil
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one poll cycle over all active organizations. Failures are
// isolated per organization: a broken tenant never blocks the others.
func (w *Worker) Tick(ctx context.Context) {
	start := w.now()
	metrics.PollTicksTotal.Inc()

	orgs, err := w.store.Organizations().ListActive(ctx)
	if err != nil {
		log.Printf("poll: list organizations: %v", err)
		return
	}
	metrics.ActiveOrganizations.Set(float64(len(orgs)))

	for _, org := range orgs {
		if ctx.Err() != nil {
			return
		}
		if err := w.pollOrg(ctx, org); err != nil {
			metrics.PollOrgErrors.Inc()
			log.Printf("poll: org %s: %v", org.ID, err)
		}
		if err := w.store.Organizations().TouchLastChecked(ctx, org.ID, w.now()); err != nil {
			log.Printf("poll: org %s: touch last checked: %v", org.ID, err)
		}
	}

	w.lastTick.Store(w.now().Unix())
	metrics.PollDuration.Observe(w.now().Sub(start).Seconds())
}

// LastTick returns the unix time of the last completed poll cycle and
// the configured interval in seconds, for readiness checks.
func (w *Worker) LastTick() (int64, int64) {
	return w.lastTick.Load(), int64(w.cfg.PollInterval / time.Second)
}

func (w *Worker) pollOrg(ctx context.Context, org *models.Organization) error {
	if !org.HasHubstaffCredentials() || org.HubstaffOrgID == "" {
		return nil
	}

	repo := w.store.Organizations()
	webhookURL, err := repo.OpenSecret(org.SlackWebhookURL)
	if err != nil {
		return fmt.Errorf("decrypt webhook url: %w", err)
	}
	if webhookURL == "" {
		return nil
	}

	token, err := w.tokens.ValidAccessToken(ctx, org)
	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}

	ticketCfg, err := w.ticketConfig(org)
	if err != nil {
		return err
	}

	stop := w.now()
	activities, err := w.feed.Activities(ctx, token, org.HubstaffOrgID, stop.Add(-w.cfg.Lookback), stop)
	if err != nil {
		return fmt.Errorf("fetch activities: %w", err)
	}

	for _, act := range activities {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if act.TaskID == 0 {
			continue
		}
		metrics.ActivitiesProcessed.Inc()
		if err := w.processActivity(ctx, org, ticketCfg, webhookURL, token, act); err != nil {
			metrics.ActivityErrors.Inc()
			log.Printf("poll: org %s: activity %s: %v", org.ID, act.TimeEntryID(), err)
		}
	}
	return nil
}

func (w *Worker) ticketConfig(org *models.Organization) (ticket.Config, error) {
	repo := w.store.Organizations()
	fdKey, err := repo.OpenSecret(org.FreshdeskAPIKey)
	if err != nil {
		return ticket.Config{}, fmt.Errorf("decrypt freshdesk key: %w", err)
	}
	glKey, err := repo.OpenSecret(org.GitLabAPIKey)
	if err != nil {
		return ticket.Config{}, fmt.Errorf("decrypt gitlab key: %w", err)
	}
	return ticket.Config{
		FreshdeskDomain:   org.FreshdeskDomain,
		FreshdeskAPIKey:   fdKey,
		GitLabDomain:      org.GitLabDomain,
		GitLabProjectPath: org.GitLabProjectPath,
		GitLabAPIKey:      glKey,
	}, nil
}

// processActivity runs one activity through the decision engine and,
// when it decides to announce, persists the cursor and ledger around
// the delivery so the announcement happens at most once:
//
//	cursor persist fails  -> abort, nothing sent, retried next tick
//	resolution fails      -> skip, no ledger entry, retried next tick
//	delivery fails        -> logged, ledger entry still written
func (w *Worker) processActivity(ctx context.Context, org *models.Organization, ticketCfg ticket.Config, webhookURL, token string, act hubstaff.Activity) error {
	events := w.store.Events()
	sessions := w.store.Sessions()

	seen, err := events.Exists(ctx, act.TimeEntryID())
	if err != nil {
		return fmt.Errorf("ledger lookup: %w", err)
	}

	sess, err := sessions.Get(ctx, org.ID, act.UserID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	gap := org.SessionGap()
	decision, err := Decide(ctx, act, sess, gap, seen, func(ctx context.Context) (bool, error) {
		return events.ExistsRecent(ctx, org.ID, act.UserID, act.TaskID, w.now().Add(-gap))
	})
	if err != nil {
		return fmt.Errorf("decide: %w", err)
	}

	if !decision.Notify {
		metrics.NotificationsSuppressed.WithLabelValues(string(decision.Reason)).Inc()
		if decision.AdvanceSession {
			return w.advanceSession(ctx, org.ID, act, sess, nil)
		}
		return nil
	}

	task, err := w.feed.TaskDetail(ctx, token, act.TaskID)
	if err != nil {
		metrics.TicketResolutionErrors.Inc()
		return fmt.Errorf("task detail: %w", err)
	}

	resolved, err := w.resolver.Resolve(ctx, ticketCfg, task)
	if err != nil {
		if errors.Is(err, ticket.ErrTicketNotFound) {
			// The task carries no ticket number at all. Advance the
			// cursor so we do not re-examine it every tick.
			metrics.NotificationsSuppressed.WithLabelValues("no_ticket").Inc()
			return w.advanceSession(ctx, org.ID, act, sess, nil)
		}
		metrics.TicketResolutionErrors.Inc()
		return fmt.Errorf("resolve ticket: %w", err)
	}
	metrics.TicketResolutions.WithLabelValues(string(resolved.Source)).Inc()

	// Persist the cursor before delivering. If this write fails the
	// notification is not sent and the activity is retried next tick.
	notifiedAt := w.now()
	if err := w.advanceSession(ctx, org.ID, act, sess, &notifiedAt); err != nil {
		return err
	}

	if !w.limiter.Allow(org.ID) {
		metrics.NotificationsSuppressed.WithLabelValues("rate_limited").Inc()
		log.Printf("poll: org %s: notification rate limited for user %d", org.ID, act.UserID)
	} else {
		userName := w.feed.UserName(ctx, token, act.UserID)
		n := notifier.Notification{
			UserName:      userName,
			TicketSubject: resolved.Subject,
			TicketID:      resolved.ID,
			TicketURL:     resolved.URL,
		}
		if err := w.sender.Send(ctx, webhookURL, n); err != nil {
			metrics.NotificationDeliveryErrors.Inc()
			log.Printf("poll: org %s: deliver notification: %v", org.ID, err)
		} else {
			metrics.NotificationsSent.WithLabelValues(string(decision.Reason)).Inc()
		}
	}

	// The ledger entry is written whether or not delivery succeeded:
	// a lost webhook post must not be replayed on the next tick.
	event := &models.ProcessedEvent{
		ID:             uuid.New().String(),
		OrgID:          org.ID,
		HubstaffUserID: act.UserID,
		HubstaffTaskID: act.TaskID,
		TimeEntryID:    act.TimeEntryID(),
		Bucket:         w.now().Unix(),
		CreatedAt:      w.now(),
	}
	if err := events.Create(ctx, event); err != nil {
		return fmt.Errorf("record ledger entry: %w", err)
	}
	return nil
}

// advanceSession moves the cursor to this activity. notifiedAt is nil
// for silent advances, which keep the previous announcement timestamp.
func (w *Worker) advanceSession(ctx context.Context, orgID string, act hubstaff.Activity, prev *models.Session, notifiedAt *time.Time) error {
	next := &models.Session{
		OrgID:          orgID,
		HubstaffUserID: act.UserID,
		LastTaskID:     act.TaskID,
		LastActivityAt: act.TimeSlot,
		UpdatedAt:      w.now(),
	}
	if notifiedAt != nil {
		next.NotifiedAt = notifiedAt
	} else if prev != nil {
		next.NotifiedAt = prev.NotifiedAt
	}
	if err := w.store.Sessions().Upsert(ctx, next); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}
