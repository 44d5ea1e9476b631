package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Entity and outcome label values.
const (
	entityStore = "store"
	entityItem  = "item"

	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

var (
	catalogMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_mutations_total",
			Help: "Total number of catalog create, update and delete operations",
		},
		[]string{"entity", "operation", "outcome"},
	)

	catalogRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_records",
			Help: "Number of records currently held in the catalog",
		},
		[]string{"entity"},
	)
)
