package ledgerclient

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hedisam/txledger/internal/custompromauto"
)

var failedRequests = custompromauto.Auto().NewCounterVec(prometheus.CounterOpts{
	Namespace: custompromauto.Namespace,
	Subsystem: "client",
	Name:      "failed_requests_total",
	Help:      "Number of ledger requests that failed after retries, by operation",
}, []string{"op"})

var retriedRequests = custompromauto.Auto().NewCounterVec(prometheus.CounterOpts{
	Namespace: custompromauto.Namespace,
	Subsystem: "client",
	Name:      "retried_requests_total",
	Help:      "Number of ledger request attempts that were retried, by operation",
}, []string{"op"})

var polledCounts = custompromauto.Auto().NewCounter(prometheus.CounterOpts{
	Namespace: custompromauto.Namespace,
	Subsystem: "client",
	Name:      "count_polls_total",
	Help:      "Number of successful ledger count polls",
})
