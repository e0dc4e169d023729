package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll outcomes
const (
	PollFetchFailed = "fetch_failed"
	PollNoData      = "no_data"
	PollUnchanged   = "unchanged"
	PollChanged     = "changed"
	PollFailed      = "failed"
)

// Publish outcomes
const (
	PublishPublished = "published"
	PublishDuplicate = "duplicate"
	PublishSkipped   = "skipped"
	PublishFailed    = "failed"
)

var (
	// PollsTotal tracks finished poll cycles by outcome
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steamsale_polls_total",
			Help: "Total number of poll cycles",
		},
		[]string{"outcome"},
	)

	// PublishesTotal tracks publish decisions by result
	PublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steamsale_publishes_total",
			Help: "Total number of publish decisions",
		},
		[]string{"result"},
	)

	// RetryEventsTotal tracks retry classifier notifications
	RetryEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steamsale_retry_events_total",
			Help: "Total number of retry classifier events",
		},
		[]string{"upstream", "event"},
	)

	// DiscountPercent is the last observed discount of the tracked app
	DiscountPercent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "steamsale_discount_percent",
			Help: "Last observed discount percentage",
		},
		[]string{"app_id"},
	)

	// TicksElapsed is the number of scheduler ticks since startup
	TicksElapsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "steamsale_ticks_elapsed",
			Help: "Scheduler ticks since process start",
		},
	)
)
