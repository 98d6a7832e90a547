package metrics_collectors

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sarthwa8/digital-twin-dashboard/internal/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelemetryMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewTelemetryMetrics(reg)
	require.NoError(t, err)

	m.MessageRouted(constants.ChannelThermal)
	m.MessageRouted(constants.ChannelThermal)
	m.MessageDropped("thermal", constants.DropSchema)
	m.ReconnectScheduled()
	m.HistoryLength(constants.ChannelPower, 60)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.routed.WithLabelValues("thermal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("thermal", constants.DropSchema)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconnects))
	assert.Equal(t, 60.0, testutil.ToFloat64(m.history.WithLabelValues("power")))
}

func TestTelemetryMetrics_ConnectionStateIsOneHot(t *testing.T) {
	m, err := NewTelemetryMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("disconnected")))

	m.ConnectionState(constants.StateErrored)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("disconnected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("errored")))
	assert.Equal(t, 4, testutil.CollectAndCount(m.state))
}

func TestTelemetryMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewTelemetryMetrics(reg)
	require.NoError(t, err)
	second, err := NewTelemetryMetrics(reg)
	require.NoError(t, err)

	first.MessageRouted(constants.ChannelIMU)
	second.MessageRouted(constants.ChannelIMU)

	assert.Equal(t, 2.0, testutil.ToFloat64(first.routed.WithLabelValues("imu")))
}

func TestNopRecorder(t *testing.T) {
	var r TelemetryRecorder = NopRecorder{}
	assert.NotPanics(t, func() {
		r.MessageRouted(constants.ChannelIMU)
		r.MessageDropped("", constants.DropUnknownTopic)
		r.ConnectionState(constants.StateConnected)
		r.ReconnectScheduled()
		r.HistoryLength(constants.ChannelIMU, 1)
	})
}
