// Package metrics holds the prometheus collectors for the client engine and
// the dev relay. Collectors register with the default registry on first use.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	messagesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletconnect",
			Subsystem: "client",
			Name:      "messages_published_total",
			Help:      "Envelopes published to the relay, by tag.",
		},
		[]string{"tag"},
	)
	messagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletconnect",
			Subsystem: "client",
			Name:      "messages_received_total",
			Help:      "Inbound envelopes by outcome.",
		},
		[]string{"outcome"},
	)
	rpcErrorsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletconnect",
			Subsystem: "client",
			Name:      "rpc_errors_sent_total",
			Help:      "Error responses sent to peers, by reason code.",
		},
		[]string{"method", "code"},
	)
	relayConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "walletconnect",
			Subsystem: "client",
			Name:      "relay_connected",
			Help:      "1 while the relay socket is connected.",
		},
	)
	resubscribedTopics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "walletconnect",
			Subsystem: "client",
			Name:      "resubscribed_topics_total",
			Help:      "Topics re-subscribed after reconnects.",
		},
	)

	relayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletconnect",
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "irn requests handled by the dev relay.",
		},
		[]string{"method", "success"},
	)
	relayDeliveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "walletconnect",
			Subsystem: "relay",
			Name:      "deliveries_total",
			Help:      "irn_subscription messages pushed to clients.",
		},
	)
	relayConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "walletconnect",
			Subsystem: "relay",
			Name:      "connections",
			Help:      "Open client sockets.",
		},
	)
	relayMailbox = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "walletconnect",
			Subsystem: "relay",
			Name:      "mailbox_messages",
			Help:      "Messages held for topics without subscribers.",
		},
	)
)

// Outcomes for RecordInbound.
const (
	OutcomeRequest     = "request"
	OutcomeResponse    = "response"
	OutcomeUndecodable = "undecodable"
	OutcomeDuplicate   = "duplicate"
	OutcomeUnmatched   = "unmatched"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			messagesPublished, messagesReceived, rpcErrorsSent, relayConnected, resubscribedTopics,
			relayRequests, relayDeliveries, relayConnections, relayMailbox,
		)
	})
}

func RecordPublish(tag int) {
	RegisterMetrics()
	messagesPublished.WithLabelValues(strconv.Itoa(tag)).Inc()
}

func RecordInbound(outcome string) {
	RegisterMetrics()
	messagesReceived.WithLabelValues(outcome).Inc()
}

func RecordErrorSent(method string, code int) {
	RegisterMetrics()
	rpcErrorsSent.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

func SetRelayConnected(connected bool) {
	RegisterMetrics()
	if connected {
		relayConnected.Set(1)
		return
	}
	relayConnected.Set(0)
}

func RecordResubscribe(topics int) {
	RegisterMetrics()
	resubscribedTopics.Add(float64(topics))
}

func RecordRelayRequest(method string, success bool) {
	RegisterMetrics()
	relayRequests.WithLabelValues(method, strconv.FormatBool(success)).Inc()
}

func RecordRelayDelivery() {
	RegisterMetrics()
	relayDeliveries.Inc()
}

func AddRelayConnections(delta int) {
	RegisterMetrics()
	relayConnections.Add(float64(delta))
}

func SetRelayMailbox(n int) {
	RegisterMetrics()
	relayMailbox.Set(float64(n))
}
