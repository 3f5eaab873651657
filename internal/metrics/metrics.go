// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

// Package metrics exposes Prometheus instrumentation for the sync engine:
// crawl outcomes and durations, asset resolution, job dispatch, fan-out
// batches, and upstream circuit breaker state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CrawlDuration tracks end-to-end crawl latency per provider.
	CrawlDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photocast_crawl_duration_seconds",
			Help:    "Duration of album crawls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// CrawlOutcomes counts crawl completions by outcome.
	CrawlOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photocast_crawl_outcomes_total",
			Help: "Total crawl completions by outcome",
		},
		[]string{"provider", "outcome"}, // "updated", "empty", "fetch_error", "parse_error", "not_configured"
	)

	// PartitionRedirects counts partition redirect hops during crawls.
	PartitionRedirects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photocast_partition_redirects_total",
			Help: "Total partition redirect hops followed during crawls",
		},
	)

	// AssetResolutions counts asset URL resolutions by outcome.
	AssetResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photocast_asset_resolutions_total",
			Help: "Total asset URL resolutions by outcome",
		},
		[]string{"outcome"}, // "ok", "fetch_error", "missing_derivative"
	)

	// RenderFallbacks counts render requests served from the last-used URL
	// after a failed on-demand crawl.
	RenderFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photocast_render_fallbacks_total",
			Help: "Total renders served from the cached last-used URL",
		},
	)

	// DispatchOutcomes counts refresh dispatch outcomes.
	DispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photocast_dispatch_outcomes_total",
			Help: "Total refresh job dispatches by outcome",
		},
		[]string{"outcome"}, // "accepted", "superseded", "queue_full"
	)

	// RefreshRetries counts retry attempts for refresh executions.
	RefreshRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photocast_refresh_retries_total",
			Help: "Total refresh execution retries",
		},
	)

	// FanOutChunks counts bulk chunks dispatched by the daily fan-out.
	FanOutChunks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photocast_fanout_chunks_total",
			Help: "Total bulk refresh chunks dispatched by scheduled fan-out",
		},
	)

	// FanOutUsers tracks how many users the last fan-out enumerated.
	FanOutUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photocast_fanout_users",
			Help: "Users enumerated by the most recent scheduled fan-out",
		},
	)

	// CircuitBreakerState tracks breaker state per upstream (0=closed,
	// 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photocast_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"upstream"},
	)

	// CircuitBreakerRequests counts requests through each breaker by result.
	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photocast_circuit_breaker_requests_total",
			Help: "Requests through circuit breakers by result",
		},
		[]string{"upstream", "result"}, // "success", "failure", "rejected"
	)

	// PickerPolls counts picker session polls by resulting state.
	PickerPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photocast_picker_polls_total",
			Help: "Picker session polls by resulting state",
		},
		[]string{"state"},
	)
)

// ObserveCrawl records one crawl completion.
func ObserveCrawl(provider, outcome string, elapsed time.Duration) {
	CrawlDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	CrawlOutcomes.WithLabelValues(provider, outcome).Inc()
}
