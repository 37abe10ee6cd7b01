package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	deliveryThread       = "thread_update"
	deliveryNotification = "notification"
	deliveryAck          = "authenticated"
)

// Metrics holds the Prometheus collectors for the realtime layer.
type Metrics struct {
	Connections      prometheus.Gauge
	HandshakeRejects prometheus.Counter
	InboundMessages  *prometheus.CounterVec
	Deliveries       *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "forum",
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Live authenticated websocket connections",
		}),
		HandshakeRejects: f.NewCounter(prometheus.CounterOpts{
			Namespace: "forum",
			Subsystem: "realtime",
			Name:      "handshake_rejections_total",
			Help:      "Websocket handshakes closed for missing or invalid sessions",
		}),
		InboundMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forum",
			Subsystem: "realtime",
			Name:      "inbound_messages_total",
			Help:      "Client messages by type",
		}, []string{"type"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forum",
			Subsystem: "realtime",
			Name:      "deliveries_total",
			Help:      "Pushes to live connections by kind and result",
		}, []string{"kind", "result"}),
	}
}

func (m *Metrics) delivered(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.Deliveries.WithLabelValues(kind, result).Inc()
}
