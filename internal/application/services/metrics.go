package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_jobs_submitted_total",
			Help: "Total number of indexing jobs accepted into the queue",
		},
	)

	jobsJoined = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_jobs_joined_total",
			Help: "Total number of triggers that joined an in-flight job",
		},
	)

	jobsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_jobs_rejected_total",
			Help: "Total number of triggers rejected because the queue was full",
		},
	)

	jobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_jobs_finished_total",
			Help: "Total number of jobs finished, by outcome",
		},
		[]string{"outcome"},
	)

	jobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "indexer_job_duration_seconds",
			Help:    "Time taken to run one indexing job",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_queue_depth",
			Help: "Number of jobs currently waiting in the queue",
		},
	)

	tradesInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_trades_inserted_total",
			Help: "Total number of new trades written to the ledger",
		},
	)

	feedPagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_feed_pages_fetched_total",
			Help: "Total number of swap-feed pages fetched successfully",
		},
	)

	feedPagesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_feed_pages_skipped_total",
			Help: "Total number of swap-feed pages skipped after retries",
		},
	)

	positionRecomputes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_position_recomputes_total",
			Help: "Total number of FIFO position recomputations",
		},
	)

	oversoldReplays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_oversold_replays_total",
			Help: "Total number of recomputations that hit the over-sell policy",
		},
	)
)
