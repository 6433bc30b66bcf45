package irrigation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "smartpot_irrigation_attempts_total",
	Help: "Command/confirm exchanges, by outcome.",
}, []string{"outcome"})
