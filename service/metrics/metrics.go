package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ingestion"

var (
	// DocumentsTotal 按结果统计的文件数：imported / skipped
	DocumentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "documents_total",
		Help:      "Files seen by archive ingestion, by outcome.",
	}, []string{"outcome"})

	// PropertyMatchesTotal 按匹配类型统计：exact / fuzzy / created / failed
	PropertyMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "property_matches_total",
		Help:      "Property match results, by match type.",
	}, []string{"type"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Finished ingestion runs, by final status.",
	}, []string{"status"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of ingestion runs.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	})
)

const (
	OutcomeImported = "imported"
	OutcomeSkipped  = "skipped"
)
