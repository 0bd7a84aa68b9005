package eventbus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventbus_events_published_total",
		Help: "Events accepted by Publish.",
	})
	eventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventbus_events_delivered_total",
		Help: "Events placed into a subscriber buffer.",
	})
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventbus_events_dropped_total",
		Help: "Buffered events evicted under the drop_oldest policy.",
	})
	subscriptionOverflows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventbus_subscription_overflows_total",
		Help: "Subscriptions closed because their buffer filled.",
	})
	activeSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eventbus_active_subscriptions",
		Help: "Live subscriptions.",
	})
)
