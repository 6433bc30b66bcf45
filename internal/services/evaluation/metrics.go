package evaluation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartpot_readings_processed_total",
		Help: "Telemetry records processed, by outcome.",
	}, []string{"outcome"})

	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartpot_alerts_emitted_total",
		Help: "Alert events published, by kind.",
	}, []string{"kind"})

	irrigationRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartpot_irrigation_requests_total",
		Help: "Automatic irrigation requests emitted after debounce.",
	})
)
