package poller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "poll_cycles_total",
		Namespace: "renowatch",
		Help:      "Number of executed poll cycles.",
	})

	metricCycleFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "poll_cycle_failures_total",
		Namespace: "renowatch",
		Help:      "Number of poll cycles that failed on cycle level.",
	})

	metricRepoPollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "repository_polls_total",
		Namespace: "renowatch",
		Help:      "Number of per-repository polls.",
	})

	metricRepoPollFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "repository_poll_failures_total",
		Namespace: "renowatch",
		Help:      "Number of per-repository polls that failed.",
	})

	metricPRsFoundTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "pull_requests_found_total",
		Namespace: "renowatch",
		Help:      "Number of dependency update pull requests seen during polls.",
	})

	metricPRsDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "pull_requests_dispatched_total",
		Namespace: "renowatch",
		Help:      "Number of pull requests dispatched to the processor, by change kind.",
	}, []string{"change_kind"})

	metricCycleDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:      "poll_cycle_duration_seconds",
		Namespace: "renowatch",
		Help:      "Duration of poll cycles.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	metricTrackedRepositories = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "tracked_repositories",
		Namespace: "renowatch",
		Help:      "Number of repositories the poller currently tracks.",
	})

	metricRateLimitUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "github_rate_limit_usage",
		Namespace: "renowatch",
		Help:      "Consumed fraction of the GitHub API quota, from 0 to 1.",
	})
)
