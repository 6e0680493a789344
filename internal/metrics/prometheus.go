package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the salary ingestion service

var (
	// Fetch metrics
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salaries_fetch_attempts_total",
			Help: "Total number of page fetch attempts",
		},
		[]string{"status"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "salaries_fetch_duration_seconds",
			Help:    "Duration of single page fetch attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Extraction metrics
	RecordsExtracted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "salaries_records_extracted",
			Help: "Number of player records extracted by the last run",
		},
	)

	NormalizationWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salaries_normalization_warnings_total",
			Help: "Total number of records kept with a missing salary or unknown team",
		},
		[]string{"kind"},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salaries_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "salaries_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "salaries_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "salaries_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "salaries_cache_hits_total",
			Help: "Total number of page cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "salaries_cache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	// Sync metrics
	SyncOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salaries_sync_operations_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"status"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "salaries_sync_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	TeamsUpserted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "salaries_teams_upserted",
			Help: "Number of teams upserted by the last run",
		},
	)

	PlayersConsidered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "salaries_players_considered",
			Help: "Number of player records considered by the last run",
		},
	)

	PlayersWritten = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "salaries_players_written",
			Help: "Number of player rows written by the last run",
		},
	)

	TeamsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "salaries_teams_stored_total",
			Help: "Total number of teams in database",
		},
	)

	PlayersStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "salaries_players_stored_total",
			Help: "Total number of player rows in database for the configured season",
		},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salaries_errors_total",
			Help: "Total number of errors",
		},
		[]string{"phase"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "salaries_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "salaries_last_successful_sync_timestamp",
			Help: "Timestamp of last successful pipeline run",
		},
	)
)

// RecordFetchAttempt records a single fetch attempt
func RecordFetchAttempt(status string, duration float64) {
	FetchAttemptsTotal.WithLabelValues(status).Inc()
	FetchDuration.Observe(duration)
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table, status string, duration float64) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordNormalizationWarning records a record kept with degraded data
func RecordNormalizationWarning(kind string) {
	NormalizationWarningsTotal.WithLabelValues(kind).Inc()
}

// RecordSync records a pipeline run
func RecordSync(status string, duration float64) {
	SyncOperationsTotal.WithLabelValues(status).Inc()
	SyncDuration.Observe(duration)

	if status == "success" {
		LastSuccessfulSync.SetToCurrentTime()
	}
}

// RecordRun publishes the counts of the last pipeline run
func RecordRun(extracted, teams, considered, written int) {
	RecordsExtracted.Set(float64(extracted))
	TeamsUpserted.Set(float64(teams))
	PlayersConsidered.Set(float64(considered))
	PlayersWritten.Set(float64(written))
}

// RecordError records a fatal error for a pipeline phase
func RecordError(phase string) {
	ErrorsTotal.WithLabelValues(phase).Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(active, idle int32) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}

// UpdateStoredStats updates the table size gauges
func UpdateStoredStats(teams, players int64) {
	TeamsStored.Set(float64(teams))
	PlayersStored.Set(float64(players))
}
