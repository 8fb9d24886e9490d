// Package metrics defines prometheus metric types for the dispatcher
// pipeline.
//
// When defining new operations or metrics, these are helpful values to
// track:
//  - things coming into or going out of the system: events, packets, frames.
//  - the success or error status of any of the above.
//  - the distribution of processing latency.
//
// Grounded on the teacher's metrics/metrics.go (m-lab/tcp-info): same
// promauto constructors, same "Provides metrics: ... Example usage: ..."
// doc-comment convention.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth tracks the number of entries waiting in the event queue
	// immediately after each Get().
	//
	// Provides metrics:
	//   simterm_queue_depth
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "simterm_queue_depth",
			Help: "Number of entries in the event queue after the most recent Get.",
		},
	)

	// DispatchLatencyHistogram tracks wall-clock seconds between an
	// event's due time and the instant the dispatcher actually delivered
	// it to listeners.
	//
	// Provides metrics:
	//   simterm_dispatch_latency_seconds_histogram
	DispatchLatencyHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simterm_dispatch_latency_seconds_histogram",
			Help:    "Delay between an event's due time and delivery to listeners.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
	)

	// EventCount counts events delivered by the dispatcher, by listener.
	//
	// Provides metrics:
	//   simterm_event_total
	// Example usage:
	//   metrics.EventCount.With(prometheus.Labels{"listener": "publisher"}).Inc()
	EventCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simterm_event_total",
			Help: "The total number of events delivered to a listener.",
		}, []string{"listener"})

	// CodecErrorCount counts decode outcomes that were not Ok, by kind.
	//
	// Provides metrics:
	//   simterm_codec_error_total
	// Example usage:
	//   metrics.CodecErrorCount.With(prometheus.Labels{"kind": "type_mismatch"}).Inc()
	CodecErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simterm_codec_error_total",
			Help: "The total number of non-Ok decode outcomes, by kind.",
		}, []string{"kind"})

	// ReconnectCount counts subscriber reconnection attempts, by channel.
	//
	// Provides metrics:
	//   simterm_reconnect_total
	ReconnectCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simterm_reconnect_total",
			Help: "The total number of reconnection attempts, by channel.",
		}, []string{"channel"})

	// PacketTimeoutCount counts per-packet timeout expiries that forced a
	// partial event to be committed early.
	//
	// Provides metrics:
	//   simterm_packet_timeout_total
	PacketTimeoutCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simterm_packet_timeout_total",
			Help: "The total number of per-packet timeouts, by channel.",
		}, []string{"channel"})

	// PublishErrorCount counts publisher write failures, by channel.
	//
	// Provides metrics:
	//   simterm_publish_error_total
	PublishErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simterm_publish_error_total",
			Help: "The total number of publisher write failures, by channel.",
		}, []string{"channel"})
)
