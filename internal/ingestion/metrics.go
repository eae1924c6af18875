package ingestion

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsNamespace = "s1"

	MetricArchiveMembers        = "archive_members_total"
	MetricArchiveMembersSkipped = "archive_members_skipped_total"
	MetricFilingRowsMatched     = "filing_rows_matched_total"
	MetricFilingRowsLoaded      = "filing_rows_loaded_total"
	MetricIngestionRuns         = "ingestion_runs_total"
	MetricIngestionRunDuration  = "ingestion_run_duration_seconds"
)

var CounterArchiveMembers = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      MetricArchiveMembers,
		Help:      "Registrant documents read from submission archives.",
	},
)

var CounterArchiveMembersSkipped = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      MetricArchiveMembersSkipped,
		Help:      "Registrant documents skipped because they could not be decoded.",
	},
)

var CounterFilingRowsMatched = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      MetricFilingRowsMatched,
		Help:      "Allow-listed filings found in submission archives.",
	},
)

var CounterFilingRowsLoaded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      MetricFilingRowsLoaded,
		Help:      "Filing rows written to the store.",
	},
	[]string{
		"mode",
	},
)

var CounterIngestionRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      MetricIngestionRuns,
		Help:      "Finished ingestion runs by final status.",
	},
	[]string{
		"status",
	},
)

var HistogramIngestionRunDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      MetricIngestionRunDuration,
		Help:      "Wall time of ingestion runs.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	},
)

func init() {
	prometheus.MustRegister(CounterArchiveMembers)
	prometheus.MustRegister(CounterArchiveMembersSkipped)
	prometheus.MustRegister(CounterFilingRowsMatched)
	prometheus.MustRegister(CounterFilingRowsLoaded)
	prometheus.MustRegister(CounterIngestionRuns)
	prometheus.MustRegister(HistogramIngestionRunDuration)
}
