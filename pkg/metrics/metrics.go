package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	dunelink = "dunelink"

	executionsTotal           = "executions_total"
	statusPollsTotal          = "status_polls_total"
	executionDurationSeconds  = "execution_duration_seconds"
	latestResultFetchesTotal  = "latest_result_fetches_total"
	uniqueQueriesCountPerWeek = "unique_queries_count_per_week"

	// Labels
	outcomeLabel = "outcome"
)

var outcomeLabels = []string{
	outcomeLabel,
}

/**
* Metrics definition
**/
var executionsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: dunelink,
		Name:      executionsTotal,
		Help:      "number of query executions partitioned by terminal outcome",
	},
	outcomeLabels,
)

var statusPollsTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: dunelink,
		Name:      statusPollsTotal,
		Help:      "number of execution status calls sent to the remote API",
	},
)

var executionDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: dunelink,
		Name:      executionDurationSeconds,
		Help:      "time from submission to terminal outcome",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
	},
	outcomeLabels,
)

var latestResultFetchesTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: dunelink,
		Name:      latestResultFetchesTotal,
		Help:      "number of latest result fetches partitioned by outcome",
	},
	outcomeLabels,
)

var uniqueQueriesPerWeekMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: dunelink,
		Name:      uniqueQueriesCountPerWeek,
		Help:      "number of distinct query ids executed this week",
	},
)

func ObserveExecution(outcome string, elapsed time.Duration) {
	labels := prometheus.Labels{outcomeLabel: outcome}
	executionsTotalMetric.With(labels).Inc()
	executionDurationMetric.With(labels).Observe(elapsed.Seconds())
}

func IncreaseStatusPolls() {
	statusPollsTotalMetric.Inc()
}

func IncreaseLatestResultFetches(outcome string) {
	latestResultFetchesTotalMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

type uniqueQueries struct {
	counter prometheus.Gauge
	seen    map[int64]struct{}
	mu      sync.Mutex
}

var UniqueQueriesPerWeek = &uniqueQueries{
	counter: uniqueQueriesPerWeekMetric,
	seen:    make(map[int64]struct{}),
}

func (u *uniqueQueries) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.seen = make(map[int64]struct{})
	u.counter.Set(0)
}

func (u *uniqueQueries) Observe(queryID int64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, exists := u.seen[queryID]; exists {
		return
	}

	u.seen[queryID] = struct{}{}
	u.counter.Inc()
}

func (u *uniqueQueries) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.seen)
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(executionsTotalMetric)
	prometheus.MustRegister(statusPollsTotalMetric)
	prometheus.MustRegister(executionDurationMetric)
	prometheus.MustRegister(latestResultFetchesTotalMetric)
	prometheus.MustRegister(uniqueQueriesPerWeekMetric)
}
