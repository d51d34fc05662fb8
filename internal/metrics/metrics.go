// Package metrics defines the Prometheus collectors for MarketFlow. They are
// registered with the default registry on import and served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketflow"

// HTTPRequestsTotal counts handled requests.
// Labels: method, route (gin full path), status.
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests handled.",
	},
	[]string{"method", "route", "status"},
)

// HTTPRequestDuration measures request latency by route.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// WizardTransitionsTotal counts wizard actions.
// Labels:
//   - action: credentials, username, role, admin_key, skip_admin, back, mode
//   - result: ok, invalid, failed
var WizardTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wizard_transitions_total",
		Help:      "Total number of auth wizard actions, by action and result.",
	},
	[]string{"action", "result"},
)

// SessionsStartedTotal counts completed wizards by resulting role.
var SessionsStartedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_started_total",
		Help:      "Total number of sessions started, by role.",
	},
	[]string{"role"},
)

// BackendErrorsTotal counts classified backend failures.
// Labels:
//   - operation: list, create, delete, signup, signin
//   - category: SCHEMA_MISSING, CONFIG_INVALID, GENERIC
var BackendErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_errors_total",
		Help:      "Total number of classified backend failures.",
	},
	[]string{"operation", "category"},
)

// BackendRequestDuration measures product repository round trips.
var BackendRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Duration of product repository calls.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// DescriptionRequestsTotal counts generated descriptions.
// Label result: generated, empty, fallback.
var DescriptionRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "description_requests_total",
		Help:      "Total number of AI description requests, by result.",
	},
	[]string{"result"},
)

// ImagesIngestedTotal counts draft image ingestion outcomes.
// Label result: accepted, too_large, invalid, over_limit.
var ImagesIngestedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "images_ingested_total",
		Help:      "Total number of draft images processed, by result.",
	},
	[]string{"result"},
)

// ActiveEntries tracks in-memory wizards and drafts.
// Label kind: wizard, draft.
var ActiveEntries = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_entries",
		Help:      "Current number of in-memory wizards and drafts.",
	},
	[]string{"kind"},
)
