package ledger

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hedisam/txledger/internal/custompromauto"
)

var (
	appendedRecords = custompromauto.Auto().NewCounter(prometheus.CounterOpts{
		Namespace: custompromauto.Namespace,
		Subsystem: "ledger",
		Name:      "appended_records_total",
		Help:      "Total number of records appended to the ledger",
	})
	rejectedAppends = custompromauto.Auto().NewCounterVec(prometheus.CounterOpts{
		Namespace: custompromauto.Namespace,
		Subsystem: "ledger",
		Name:      "rejected_appends_total",
		Help:      "Total number of append requests rejected by validation, by reason",
	}, []string{"reason"})
	duplicateSubmissions = custompromauto.Auto().NewCounter(prometheus.CounterOpts{
		Namespace: custompromauto.Namespace,
		Subsystem: "ledger",
		Name:      "duplicate_submissions_total",
		Help:      "Total number of append requests answered with an already appended record",
	})
)
