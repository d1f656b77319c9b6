package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// METRICS
// =============================================================================

var (
	metricEntriesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chama_ledger_entries_appended_total",
		Help: "Entries appended to the in-memory log.",
	})

	metricPersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chama_ledger_persist_failures_total",
		Help: "Durable writes that failed and triggered a reload.",
	})

	metricReloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chama_ledger_reloads_total",
		Help: "Full reloads of the entry log from the backend.",
	})
)
