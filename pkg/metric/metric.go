// Package metric defines the engine's diagnostic counters.
package metric

import "github.com/prometheus/client_golang/prometheus"

const namespace = "plugin"

// Metrics holds the protocol-engine counters. Correlation and decode
// failures are non-fatal by design, so the counters are the only place they
// become visible beyond the log.
type Metrics struct {
	FramesRead         prometheus.Counter
	FramesWritten      prometheus.Counter
	DecodeFailures     prometheus.Counter
	ResponsesDiscarded prometheus.Counter
	HandlerFailures    *prometheus.CounterVec
	RequestsInFlight   prometheus.Gauge
	CallsPending       prometheus.Gauge
}

// New creates an unregistered Metrics instance.
func New() *Metrics {
	return &Metrics{
		FramesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "frames_read_total",
			Help:      "Frames read from the transport",
		}),
		FramesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "frames_written_total",
			Help:      "Frames written to the transport",
		}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "decode_failures_total",
			Help:      "Frames rejected by the codec",
		}),
		ResponsesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "responses_discarded_total",
			Help:      "Responses with unknown or already settled ids",
		}),
		HandlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "handler_failures_total",
			Help:      "Handler invocations that produced an error reply",
		}, []string{"method"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_in_flight",
			Help:      "Inbound requests currently being handled",
		}),
		CallsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "calls_pending",
			Help:      "Outbound calls awaiting a response",
		}),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.FramesRead,
		m.FramesWritten,
		m.DecodeFailures,
		m.ResponsesDiscarded,
		m.HandlerFailures,
		m.RequestsInFlight,
		m.CallsPending,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
