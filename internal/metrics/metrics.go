// Package metrics provides Prometheus metrics for the notifier.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "refari"
)

// Poller metrics
var (
	// PollTicksTotal counts scheduler ticks.
	PollTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "ticks_total",
			Help:      "Total poll cycles executed",
		},
	)

	// PollDuration tracks how long one full poll cycle takes.
	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "duration_seconds",
			Help:      "Poll cycle duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// PollOrgErrors counts organizations whose poll failed.
	PollOrgErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "org_errors_total",
			Help:      "Total per-organization poll failures",
		},
	)

	// ActivitiesProcessed counts feed activities examined.
	ActivitiesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "activities_total",
			Help:      "Total feed activities examined",
		},
	)

	// ActivityErrors counts activities whose processing failed.
	ActivityErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "activity_errors_total",
			Help:      "Total per-activity processing failures",
		},
	)
)

// Notification metrics
var (
	// NotificationsSent counts delivered announcements by trigger.
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Total notifications delivered",
		},
		[]string{"trigger"}, // first_contact, task_changed, gap_exceeded
	)

	// NotificationsSuppressed counts activities that produced no announcement.
	NotificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "suppressed_total",
			Help:      "Total activities suppressed without an announcement",
		},
		[]string{"reason"}, // duplicate, stale, continuation, flip_flop, no_ticket, rate_limited
	)

	// NotificationDeliveryErrors counts failed webhook posts.
	NotificationDeliveryErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "delivery_errors_total",
			Help:      "Total webhook delivery failures",
		},
	)
)

// Ticket resolution metrics
var (
	// TicketResolutions counts resolutions by backend.
	TicketResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "resolutions_total",
			Help:      "Total ticket resolutions by backend",
		},
		[]string{"source"}, // freshdesk, gitlab
	)

	// TicketResolutionErrors counts resolution failures.
	TicketResolutionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "resolution_errors_total",
			Help:      "Total ticket resolution failures",
		},
	)
)

// Organization metrics
var (
	// ActiveOrganizations tracks the number of organizations being polled.
	ActiveOrganizations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orgs",
			Name:      "active",
			Help:      "Number of active organizations",
		},
	)
)

// Info metric
var (
	// BuildInfo exposes build information.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)
)

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, commit, buildTime string) {
	BuildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
