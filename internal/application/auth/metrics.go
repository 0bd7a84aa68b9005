package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var recoveryOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "password_recovery_requests_total",
	Help: "Password recovery requests by outcome.",
}, []string{"outcome"})
