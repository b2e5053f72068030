// Package metrics declares the gateway's Prometheus collectors. They register
// on the default registry at init and are scraped from /_gateway/metrics
// together with the per-route HTTP metrics produced by echoprometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "greatway"

// TokenVerificationFailuresTotal counts rejected bearer tokens.
// Label reason: missing, malformed, signature_invalid or expired.
var TokenVerificationFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_verification_failures_total",
		Help:      "Total number of requests rejected by token verification, by reason.",
	},
	[]string{"reason"},
)

// AuthorizationDenialsTotal counts guard rejections.
// Label reason: no_claims or missing_role.
var AuthorizationDenialsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_denials_total",
		Help:      "Total number of requests denied by the authorization guard.",
	},
	[]string{"reason"},
)

var UpstreamRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Total number of requests relayed to the upstream, by method and upstream status code.",
	},
	[]string{"method", "code"},
)

// UpstreamErrorsTotal counts forwards that never produced an upstream response.
var UpstreamErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_errors_total",
		Help:      "Total number of forwarded requests that failed at the transport level.",
	},
)

var UpstreamRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Time spent relaying a request to the upstream, including streaming the response.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method"},
)

// LoginsTotal counts login attempts. Label result: success or failure.
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)
