package verification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var codeOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "verification_code_operations_total",
	Help: "Verification code issue/validate calls by outcome.",
}, []string{"op", "outcome"})
