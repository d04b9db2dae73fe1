package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BotMetrics records the conversational traffic counters. All methods
// are nil-safe so callers never guard on whether metrics are enabled.
type BotMetrics struct {
	inbound         *prometheus.CounterVec
	outbound        *prometheus.CounterVec
	callbacks       *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
}

// NewBotMetrics registers the bot metrics on the provided registerer.
func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	if reg == nil {
		return &BotMetrics{}
	}
	inbound := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inbound_messages_total",
		Help: "Inbound WhatsApp messages by flow scope.",
	}, []string{"scope"})
	outbound := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbound_sends_total",
		Help: "Outbound WhatsApp sends by kind and result.",
	}, []string{"kind", "result"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Payment gateway callbacks by outcome.",
	}, []string{"outcome"})
	handlerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_handler_duration_seconds",
		Help:    "Duration of webhook handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"handler"})
	reg.MustRegister(inbound, outbound, callbacks, handlerDuration)
	return &BotMetrics{
		inbound:         inbound,
		outbound:        outbound,
		callbacks:       callbacks,
		handlerDuration: handlerDuration,
	}
}

// IncInbound counts one inbound message for the given scope.
func (b *BotMetrics) IncInbound(scope string) {
	if b == nil || b.inbound == nil {
		return
	}
	b.inbound.WithLabelValues(normalizeLabel(scope)).Inc()
}

// IncOutbound counts one outbound send. result is one of
// sent|fallback|failed.
func (b *BotMetrics) IncOutbound(kind, result string) {
	if b == nil || b.outbound == nil {
		return
	}
	b.outbound.WithLabelValues(normalizeLabel(kind), normalizeLabel(result)).Inc()
}

// IncCallback counts one payment callback by outcome.
func (b *BotMetrics) IncCallback(outcome string) {
	if b == nil || b.callbacks == nil {
		return
	}
	b.callbacks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveHandlerDuration records how long a webhook handler took.
func (b *BotMetrics) ObserveHandlerDuration(handler string, duration time.Duration) {
	if b == nil || b.handlerDuration == nil {
		return
	}
	b.handlerDuration.WithLabelValues(normalizeLabel(handler)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
