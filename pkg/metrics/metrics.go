// Copyright (c) 2025 Cue Protocol
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@cueprotocol.io for commercial licensing options.

// Package metrics provides Prometheus instrumentation for the passkey
// service: authentication outcomes, challenge store occupancy, and HTTP
// request counters and latencies.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all passkey metrics
	Namespace = "passkey"

	// Label names
	LabelAction     = "action"
	LabelStatus     = "status"
	LabelErrorKind  = "error_kind"
	LabelMethod     = "method"
	LabelRoute      = "route"
	LabelStatusCode = "status_code"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Action names
	ActionStart    = "start"
	ActionLogin    = "login"
	ActionRegister = "register"
	ActionRestore  = "restore"
)

var (
	// AuthOperationsTotal tracks authentication operations by action and status.
	AuthOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "auth_operations_total",
			Help:      "Total number of authentication operations by action and status",
		},
		[]string{LabelAction, LabelStatus},
	)

	// AuthOperationDuration tracks the duration of authentication operations
	// in seconds. Buckets cover fast in-memory lookups through full
	// cryptographic ceremony verification.
	AuthOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "auth_operation_duration_seconds",
			Help:      "Duration of authentication operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{LabelAction},
	)

	// AuthErrorsTotal tracks authentication failures by action and error kind.
	AuthErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "auth_errors_total",
			Help:      "Total number of authentication errors by action and error kind",
		},
		[]string{LabelAction, LabelErrorKind},
	)

	// ChallengesPending tracks the number of unconsumed challenges held in
	// memory. Updated after every sweep.
	ChallengesPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "challenges_pending",
			Help:      "Number of unconsumed challenges currently held",
		},
	)

	// ChallengesSweptTotal counts challenges removed by the expiry sweeper.
	ChallengesSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "challenges_swept_total",
			Help:      "Total number of expired challenges removed by the sweeper",
		},
	)

	// RewardGrantsTotal counts registration bonus grants by status.
	RewardGrantsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reward_grants_total",
			Help:      "Total number of registration bonus grants by status",
		},
		[]string{LabelStatus},
	)

	// HTTPRequestsTotal tracks HTTP requests by method, route, and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code",
		},
		[]string{LabelMethod, LabelRoute, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelRoute},
	)

	// Goroutines tracks the current number of goroutines.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks currently allocated heap memory.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Currently allocated heap memory in bytes",
		},
	)

	// MemorySysBytes tracks memory obtained from the OS.
	MemorySysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_sys_bytes",
			Help:      "Total memory obtained from the OS in bytes",
		},
	)

	// ServerUptime tracks how long the server has been running.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "uptime_seconds",
			Help:      "Server uptime in seconds",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordAuthOperation records an authentication operation with its duration
// and status.
//
// Example:
//
//	start := time.Now()
//	result, err := svc.CompleteAuthentication(ctx, id, creation, nil)
//	duration := time.Since(start).Seconds()
//	if err != nil {
//	    metrics.RecordAuthOperation(metrics.ActionRegister, metrics.StatusError, duration)
//	} else {
//	    metrics.RecordAuthOperation(metrics.ActionRegister, metrics.StatusSuccess, duration)
//	}
func RecordAuthOperation(action, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	AuthOperationsTotal.WithLabelValues(action, status).Inc()
	AuthOperationDuration.WithLabelValues(action).Observe(duration)
}

// RecordAuthError records an authentication failure with its stable error kind.
func RecordAuthError(action, errorKind string) {
	if !enabled.Load() {
		return
	}
	AuthErrorsTotal.WithLabelValues(action, errorKind).Inc()
}

// RecordSweep records the outcome of a challenge store sweep.
func RecordSweep(removed, pending int) {
	if !enabled.Load() {
		return
	}
	ChallengesSweptTotal.Add(float64(removed))
	ChallengesPending.Set(float64(pending))
}

// RecordRewardGrant records a registration bonus grant outcome.
func RecordRewardGrant(granted bool) {
	if !enabled.Load() {
		return
	}
	status := StatusSuccess
	if !granted {
		status = StatusError
	}
	RewardGrantsTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration and status.
func RecordHTTPRequest(method, route, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
