package relay

import (
	"github.com/kevinxiao27/consistent/cmap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Merges      *prometheus.CounterVec
	Messages    *prometheus.CounterVec
	Obligations *prometheus.CounterVec
	Rejected    *prometheus.CounterVec
	Clients     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Merges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consistent",
			Subsystem: "relay",
			Name:      "merges_total",
			Help:      "Collection merges performed",
		}, []string{"collection"}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consistent",
			Subsystem: "relay",
			Name:      "messages_total",
			Help:      "Messages received from clients",
		}, []string{"collection", "type"}),
		Obligations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consistent",
			Subsystem: "relay",
			Name:      "obligations_total",
			Help:      "Record ids a merge required one side to create, update or remove",
		}, []string{"collection", "side", "kind"}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consistent",
			Subsystem: "relay",
			Name:      "rejected_messages_total",
			Help:      "Messages refused as malformed",
		}, []string{"collection"}),
		Clients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "consistent",
			Subsystem: "relay",
			Name:      "clients",
			Help:      "Connected WebSocket clients",
		}),
	}
}

func (m *Metrics) observe(collection string, local, remote cmap.Obligations) {
	if m == nil {
		return
	}
	m.Merges.WithLabelValues(collection).Inc()
	for side, o := range map[string]cmap.Obligations{"local": local, "remote": remote} {
		m.Obligations.WithLabelValues(collection, side, "create").Add(float64(len(o.Create)))
		m.Obligations.WithLabelValues(collection, side, "update").Add(float64(len(o.Update)))
		m.Obligations.WithLabelValues(collection, side, "remove").Add(float64(len(o.Remove)))
	}
}
