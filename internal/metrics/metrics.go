// Package metrics registers the relay's Prometheus metrics and serves them
// for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "joyrelay"

var latencyBuckets = []float64{0.5, 1, 2, 5, 10, 30, 60}

// Registry holds every joyrelay metric plus the Go runtime and process
// collectors.
var Registry = prometheus.NewRegistry()

var (
	started = time.Now()

	MailboxRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mailbox_records",
		Help:      "Relay records currently held in the mailbox",
	})
	WaitingForReply = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "waiting_for_reply",
		Help:      "1 while a notification awaits a human reply",
	})
	ProviderLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_latency_seconds",
		Help:      "AI provider request latency in seconds",
		Buckets:   latencyBuckets,
	})
	TranscriptionLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transcription_latency_seconds",
		Help:      "Transcription request latency in seconds",
		Buckets:   latencyBuckets,
	})

	webhookUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_updates_total",
		Help:      "Telegram webhook updates by outcome",
	}, []string{"status"})
	notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Outbound Telegram messages by result",
	}, []string{"result"})
	providerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "AI provider requests by provider and result",
	}, []string{"provider", "result"})
	transcriptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transcriptions_total",
		Help:      "Voice transcriptions by result",
	}, []string{"result"})
	eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Relay events published by result",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since start in seconds",
		}, func() float64 { return time.Since(started).Seconds() }),
		MailboxRecords,
		WaitingForReply,
		ProviderLatency,
		TranscriptionLatency,
		webhookUpdates,
		notifications,
		providerRequests,
		transcriptions,
		eventsPublished,
	)
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// WebhookUpdates counts processed webhook updates by outcome status.
func WebhookUpdates(status string) prometheus.Counter {
	return webhookUpdates.WithLabelValues(status)
}

// Notifications counts outbound Telegram messages by result (ok | failed).
func Notifications(result string) prometheus.Counter {
	return notifications.WithLabelValues(result)
}

// ProviderRequests counts AI provider calls by provider and result.
func ProviderRequests(provider, result string) prometheus.Counter {
	return providerRequests.WithLabelValues(provider, result)
}

// Transcriptions counts transcription attempts by result.
func Transcriptions(result string) prometheus.Counter {
	return transcriptions.WithLabelValues(result)
}

// Events counts events handed to the external publisher by result.
func Events(result string) prometheus.Counter {
	return eventsPublished.WithLabelValues(result)
}

// SetWaiting mirrors the mailbox waiting flag.
func SetWaiting(waiting bool) {
	if waiting {
		WaitingForReply.Set(1)
		return
	}
	WaitingForReply.Set(0)
}
