package chat

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the gateway's prometheus collectors.
type Metrics struct {
	Connections   prometheus.Gauge
	OnlineUsers   prometheus.Gauge
	Broadcasts    prometheus.Counter
	PushFailures  *prometheus.CounterVec // kind=presence|message|unicast
	Messages      *prometheus.CounterVec // result=persisted|pushed|offline|storage_error
	StaleEvicted  prometheus.Counter
	Superseded    prometheus.Counter
	DroppedFrames prometheus.Counter
}

// NewMetrics registers the collectors on reg. A nil reg leaves them
// unregistered, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat", Name: "connections", Help: "Open websocket connections, anonymous included.",
		}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat", Name: "online_users", Help: "Users in the connection registry.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat", Name: "presence_broadcasts_total", Help: "Presence broadcast rounds.",
		}),
		PushFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat", Name: "push_failures_total", Help: "Soft push failures.",
		}, []string{"kind"}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat", Name: "messages_total", Help: "Send outcomes.",
		}, []string{"result"}),
		StaleEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat", Name: "registry_stale_evictions_total", Help: "Registry entries dropped on lookup because the transport was closed.",
		}),
		Superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat", Name: "superseded_connections_total", Help: "Connections closed because the same user reconnected.",
		}),
		DroppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat", Name: "inbound_frames_dropped_total", Help: "Inbound frames dropped by the rate limiter.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Connections, m.OnlineUsers, m.Broadcasts, m.PushFailures,
			m.Messages, m.StaleEvicted, m.Superseded, m.DroppedFrames)
	}
	return m
}
