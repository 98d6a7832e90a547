package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/sarthwa8/digital-twin-dashboard/internal/constants"
	"github.com/sarthwa8/digital-twin-dashboard/internal/decoder"
	"github.com/sarthwa8/digital-twin-dashboard/internal/metrics_collectors"
	"github.com/sarthwa8/digital-twin-dashboard/internal/mocks"
	"github.com/sarthwa8/digital-twin-dashboard/internal/models"
	"github.com/sarthwa8/digital-twin-dashboard/internal/registry"
	"github.com/sarthwa8/digital-twin-dashboard/internal/state_managers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNamespace = "digitaltwin/motor"

type routerFixture struct {
	router    *TelemetryRouter
	snapshots *state_managers.SnapshotManager
	registry  *prometheus.Registry
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()

	channels, err := registry.NewChannelRegistry(registry.DefaultTopics(testNamespace))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics, err := metrics_collectors.NewTelemetryMetrics(reg)
	require.NoError(t, err)

	snapshots := state_managers.NewSnapshotManager(zerolog.Nop())
	router := NewTelemetryRouter(channels, decoder.NewPayloadDecoder(mocks.NewManualClock()), snapshots, metrics, zerolog.Nop())

	return routerFixture{router: router, snapshots: snapshots, registry: reg}
}

func topic(suffix string) string {
	return testNamespace + "/" + suffix
}

func powerPayload(voltage int) []byte {
	return []byte(fmt.Sprintf(
		`{"voltage": %d, "current": 2.0, "power": 400, "apparent_power": 460, "power_factor": 0.87, "frequency": 50}`,
		voltage,
	))
}

func TestRoute_ThermalSampleBecomesLatestAndHistory(t *testing.T) {
	f := newRouterFixture(t)

	err := f.router.Route(topic("sensors/thermal"), []byte(`{"temperature": 55.0, "unit": "°C", "location": "Stator Housing"}`))
	require.NoError(t, err)

	snap := f.snapshots.Current()
	latest, ok := snap.Latest(constants.ChannelThermal)
	require.True(t, ok)
	assert.Equal(t, 55.0, latest.(models.ThermalSample).Temperature)

	history := snap.History(constants.ChannelThermal)
	require.Len(t, history, 1)
	assert.Equal(t, latest, history[0])
	assert.Equal(t, uint64(1), snap.Sequence)
}

func TestRoute_HistoryKeepsLastSixtySamples(t *testing.T) {
	f := newRouterFixture(t)

	for v := 1; v <= 61; v++ {
		require.NoError(t, f.router.Route(topic("sensors/power"), powerPayload(v)))
	}

	snap := f.snapshots.Current()
	history := snap.History(constants.ChannelPower)
	require.Len(t, history, constants.HistoryCapacity)
	for i, s := range history {
		assert.Equal(t, float64(i+2), s.(models.PowerSample).Voltage)
	}

	latest, ok := snap.Latest(constants.ChannelPower)
	require.True(t, ok)
	assert.Equal(t, 61.0, latest.(models.PowerSample).Voltage)
	assert.Equal(t, uint64(61), snap.Sequence)

	expected := `
# HELP twin_history_length Samples currently held in each time-series history window.
# TYPE twin_history_length gauge
twin_history_length{channel="power"} 60
`
	assert.NoError(t, testutil.GatherAndCompare(f.registry, strings.NewReader(expected), "twin_history_length"))
}

func TestRoute_UnknownTopicIsDropped(t *testing.T) {
	f := newRouterFixture(t)
	require.NoError(t, f.router.Route(topic("sensors/thermal"), []byte(`{"temperature": 40}`)))
	before := f.snapshots.Current()

	notified := 0
	f.snapshots.Subscribe(func(models.Snapshot) { notified++ })

	err := f.router.Route(topic("sensors/vibration"), []byte(`{"temperature": 99}`))

	assert.ErrorIs(t, err, ErrUnknownTopic)
	assert.Equal(t, before, f.snapshots.Current())
	assert.Zero(t, notified)
}

func TestRoute_MalformedPayloadLeavesChannelUntouched(t *testing.T) {
	f := newRouterFixture(t)

	err := f.router.Route(topic("sensors/thermal"), []byte(`{"temperature": 55`))
	require.ErrorIs(t, err, decoder.ErrMalformed)
	_, ok := f.snapshots.Current().Latest(constants.ChannelThermal)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), f.snapshots.Current().Sequence)

	require.NoError(t, f.router.Route(topic("sensors/thermal"), []byte(`{"temperature": 41.5}`)))
	err = f.router.Route(topic("sensors/thermal"), []byte(`{"temperature": "hot"}`))
	require.ErrorIs(t, err, decoder.ErrSchemaMismatch)

	snap := f.snapshots.Current()
	latest, ok := snap.Latest(constants.ChannelThermal)
	require.True(t, ok)
	assert.Equal(t, 41.5, latest.(models.ThermalSample).Temperature)
	assert.Len(t, snap.History(constants.ChannelThermal), 1)
}

func TestRoute_SingletonChannelsKeepNoHistory(t *testing.T) {
	f := newRouterFixture(t)

	require.NoError(t, f.router.Route(topic("fault/prediction"), []byte(`{"predicted_class": "Ball", "confidence": 77.5, "probabilities": {"Ball": 77.5}}`)))
	require.NoError(t, f.router.Route(topic("status"), []byte(`{"running": true, "rpm": 1450, "current_fault": "Ball"}`)))

	snap := f.snapshots.Current()
	fault, ok := snap.Latest(constants.ChannelFault)
	require.True(t, ok)
	assert.Equal(t, "Ball", fault.(models.FaultPrediction).PredictedClass)
	assert.Empty(t, snap.History(constants.ChannelFault))

	status, ok := snap.Latest(constants.ChannelStatus)
	require.True(t, ok)
	assert.Equal(t, 1450.0, status.(models.MotorStatus).RPM)
	assert.Empty(t, snap.History(constants.ChannelStatus))
}

func TestRoute_LastProcessedWins(t *testing.T) {
	f := newRouterFixture(t)

	require.NoError(t, f.router.Route(topic("status"), []byte(`{"running": true, "rpm": 1450, "current_fault": "Normal"}`)))
	require.NoError(t, f.router.Route(topic("status"), []byte(`{"running": false, "rpm": 0, "current_fault": "Normal"}`)))

	latest, ok := f.snapshots.Current().Latest(constants.ChannelStatus)
	require.True(t, ok)
	assert.False(t, latest.(models.MotorStatus).Running)
}

func TestRoute_OnlyTheRoutedChannelChanges(t *testing.T) {
	f := newRouterFixture(t)
	require.NoError(t, f.router.Route(topic("sensors/thermal"), []byte(`{"temperature": 40}`)))
	before := f.snapshots.Current()

	require.NoError(t, f.router.Route(topic("sensors/imu"), []byte(`{"accelerometer":{"x":1,"y":2,"z":3},"gyroscope":{"x":4,"y":5,"z":6}}`)))
	after := f.snapshots.Current()

	assert.Equal(t, before.Sequence+1, after.Sequence)
	assert.Equal(t, before.Connection, after.Connection)
	assert.Equal(t, before.Channels[constants.ChannelThermal], after.Channels[constants.ChannelThermal])
	_, ok := before.Latest(constants.ChannelIMU)
	assert.False(t, ok, "earlier snapshot must not observe later samples")
	_, ok = after.Latest(constants.ChannelIMU)
	assert.True(t, ok)
}

func TestRoute_CountsRoutedAndDropped(t *testing.T) {
	f := newRouterFixture(t)

	_ = f.router.Route(topic("sensors/thermal"), []byte(`{"temperature": 40}`))
	_ = f.router.Route(topic("sensors/thermal"), []byte(`not json`))
	_ = f.router.Route(topic("sensors/thermal"), []byte(`{}`))
	_ = f.router.Route("elsewhere/topic", []byte(`{}`))

	expected := `
# HELP twin_messages_dropped_total Telemetry messages dropped because the topic was unknown or the payload did not decode.
# TYPE twin_messages_dropped_total counter
twin_messages_dropped_total{channel="",reason="unknown_topic"} 1
twin_messages_dropped_total{channel="thermal",reason="malformed"} 1
twin_messages_dropped_total{channel="thermal",reason="schema"} 1
# HELP twin_messages_routed_total Telemetry messages decoded and applied to the snapshot.
# TYPE twin_messages_routed_total counter
twin_messages_routed_total{channel="thermal"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.registry, strings.NewReader(expected),
		"twin_messages_dropped_total", "twin_messages_routed_total"))
}
