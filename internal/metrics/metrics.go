// Package metrics collects and exposes Prometheus metrics for the
// notification pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus instruments for every pipeline stage.
type Collector struct {
	eventsReceived    prometheus.Counter
	commitsHandled    prometheus.Counter
	candidatesEmitted *prometheus.CounterVec
	candidatesDropped *prometheus.CounterVec
	messagesQueued    prometheus.Counter
	pushesSent        prometheus.Counter
	pushErrors        prometheus.Counter
	receiptsChecked   prometheus.Counter
	tokensDisabled    prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		eventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pushnotifs_firehose_events_total",
			Help: "Total firehose events received.",
		}),
		commitsHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pushnotifs_commits_handled_total",
			Help: "Total commit events inspected by the classifier.",
		}),
		candidatesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pushnotifs_candidates_total",
			Help: "Notification candidates emitted, by kind.",
		}, []string{"kind"}),
		candidatesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pushnotifs_candidates_dropped_total",
			Help: "Candidates dropped before delivery, by reason.",
		}, []string{"reason"}),
		messagesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pushnotifs_messages_queued_total",
			Help: "Messages appended to the dispatch queue.",
		}),
		pushesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pushnotifs_pushes_sent_total",
			Help: "Push notifications accepted by the gateway.",
		}),
		pushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pushnotifs_push_errors_total",
			Help: "Per-message errors reported by the push gateway.",
		}),
		receiptsChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pushnotifs_receipts_checked_total",
			Help: "Delivery receipts fetched from the gateway.",
		}),
		tokensDisabled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pushnotifs_tokens_disabled_total",
			Help: "Device tokens disabled after a permanent delivery failure.",
		}),
	}

	reg.MustRegister(
		c.eventsReceived,
		c.commitsHandled,
		c.candidatesEmitted,
		c.candidatesDropped,
		c.messagesQueued,
		c.pushesSent,
		c.pushErrors,
		c.receiptsChecked,
		c.tokensDisabled,
	)

	return c
}

func (c *Collector) RecordEventReceived() { c.eventsReceived.Inc() }

func (c *Collector) RecordCommitHandled() { c.commitsHandled.Inc() }

func (c *Collector) RecordCandidate(kind string) {
	c.candidatesEmitted.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordDrop(reason string) {
	c.candidatesDropped.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordMessageQueued() { c.messagesQueued.Inc() }

func (c *Collector) RecordPushesSent(n int) { c.pushesSent.Add(float64(n)) }

func (c *Collector) RecordPushErrors(n int) { c.pushErrors.Add(float64(n)) }

func (c *Collector) RecordReceiptsChecked(n int) { c.receiptsChecked.Add(float64(n)) }

func (c *Collector) RecordTokenDisabled() { c.tokensDisabled.Inc() }

// Handler returns the Prometheus scrape handler for the registry.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
