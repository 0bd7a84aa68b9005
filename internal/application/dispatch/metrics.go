package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var senderOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dispatch_out_of_band_total",
	Help: "Out-of-band delivery attempts by channel and outcome.",
}, []string{"channel", "outcome"})
