package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TreeRepairs BuildTree 自动修正的版块数
	TreeRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_board_tree_repairs_total",
		Help: "Boards whose child_level or category was corrected while building the tree.",
	}, []string{"field"})

	// RecountCorrections 重新统计时改写的行数
	RecountCorrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_recount_corrections_total",
		Help: "Rows rewritten by the statistics recount, by step.",
	}, []string{"step"})

	RecountRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_recount_runs_total",
		Help: "Budgeted recount invocations, by outcome.",
	}, []string{"outcome"})

	RecountDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forum_recount_run_duration_seconds",
		Help:    "Wall time of one budgeted recount invocation.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_http_requests_total",
		Help: "HTTP requests handled, by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forum_http_request_duration_seconds",
		Help:    "HTTP request latency, by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
