package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// queryFetchesTotal counts list query fetch outcomes
	queryFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todo_query_fetches_total",
			Help: "Total list query fetches by result (success, error, superseded)",
		},
		[]string{"result"},
	)

	// queryClampsTotal counts page clamps after the collection shrank
	queryClampsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "todo_query_clamps_total",
			Help: "Total page clamps after the page count shrank below the current page",
		},
	)
)
