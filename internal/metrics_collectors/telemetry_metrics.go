package metrics_collectors

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sarthwa8/digital-twin-dashboard/internal/constants"
)

// TelemetryRecorder receives counters from the ingestion path.
type TelemetryRecorder interface {
	MessageRouted(channel constants.ChannelName)
	MessageDropped(channel string, reason string)
	ConnectionState(state constants.ConnectionState)
	ReconnectScheduled()
	HistoryLength(channel constants.ChannelName, n int)
}

// TelemetryMetrics exports ingestion metrics to Prometheus.
type TelemetryMetrics struct {
	routed     *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	state      *prometheus.GaugeVec
	reconnects prometheus.Counter
	history    *prometheus.GaugeVec
}

var _ TelemetryRecorder = (*TelemetryMetrics)(nil)

var connectionStates = []constants.ConnectionState{
	constants.StateDisconnected,
	constants.StateConnecting,
	constants.StateConnected,
	constants.StateErrored,
}

// NewTelemetryMetrics creates the collectors and registers them with reg.
// Collectors already registered with reg are reused.
func NewTelemetryMetrics(reg prometheus.Registerer) (*TelemetryMetrics, error) {
	m := &TelemetryMetrics{
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twin_messages_routed_total",
			Help: "Telemetry messages decoded and applied to the snapshot.",
		}, []string{"channel"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twin_messages_dropped_total",
			Help: "Telemetry messages dropped because the topic was unknown or the payload did not decode.",
		}, []string{"channel", "reason"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "twin_connection_state",
			Help: "Broker connection state, 1 for the current state and 0 otherwise.",
		}, []string{"state"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twin_reconnects_scheduled_total",
			Help: "Reconnect attempts scheduled after a transport error.",
		}),
		history: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "twin_history_length",
			Help: "Samples currently held in each time-series history window.",
		}, []string{"channel"}),
	}

	if reg != nil {
		routed, err := registerOrReuse(reg, m.routed)
		if err != nil {
			return nil, err
		}
		dropped, err := registerOrReuse(reg, m.dropped)
		if err != nil {
			return nil, err
		}
		state, err := registerOrReuse(reg, m.state)
		if err != nil {
			return nil, err
		}
		reconnects, err := registerOrReuse(reg, m.reconnects)
		if err != nil {
			return nil, err
		}
		history, err := registerOrReuse(reg, m.history)
		if err != nil {
			return nil, err
		}
		m.routed, m.dropped, m.state, m.reconnects, m.history = routed, dropped, state, reconnects, history
	}

	m.ConnectionState(constants.StateDisconnected)
	return m, nil
}

// registerOrReuse registers c, or returns the collector reg already holds
// under the same descriptor.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return c, err
		}
		existing, ok := are.ExistingCollector.(T)
		if !ok {
			return c, err
		}
		return existing, nil
	}
	return c, nil
}

func (m *TelemetryMetrics) MessageRouted(channel constants.ChannelName) {
	m.routed.WithLabelValues(string(channel)).Inc()
}

func (m *TelemetryMetrics) MessageDropped(channel string, reason string) {
	m.dropped.WithLabelValues(channel, reason).Inc()
}

func (m *TelemetryMetrics) ConnectionState(state constants.ConnectionState) {
	for _, s := range connectionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(string(s)).Set(v)
	}
}

func (m *TelemetryMetrics) ReconnectScheduled() {
	m.reconnects.Inc()
}

func (m *TelemetryMetrics) HistoryLength(channel constants.ChannelName, n int) {
	m.history.WithLabelValues(string(channel)).Set(float64(n))
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) MessageRouted(constants.ChannelName) {}
func (NopRecorder) MessageDropped(string, string) {}
func (NopRecorder) ConnectionState(constants.ConnectionState) {}
func (NopRecorder) ReconnectScheduled() {}
func (NopRecorder) HistoryLength(constants.ChannelName, int) {}
