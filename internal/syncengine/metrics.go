package syncengine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hedisam/txledger/internal/custompromauto"
)

var (
	bootstraps = custompromauto.Auto().NewCounterVec(prometheus.CounterOpts{
		Namespace: custompromauto.Namespace,
		Subsystem: "engine",
		Name:      "bootstraps_total",
		Help:      "Total number of cache bootstraps, by result",
	}, []string{"result"})

	submissions = custompromauto.Auto().NewCounterVec(prometheus.CounterOpts{
		Namespace: custompromauto.Namespace,
		Subsystem: "engine",
		Name:      "submissions_total",
		Help:      "Total number of submission attempts, by outcome",
	}, []string{"outcome"})

	discardedResults = custompromauto.Auto().NewCounter(prometheus.CounterOpts{
		Namespace: custompromauto.Namespace,
		Subsystem: "engine",
		Name:      "discarded_results_total",
		Help:      "Total number of in-flight results discarded because the identity changed",
	})
)
