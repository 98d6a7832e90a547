package service_registry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sarthwa8/digital-twin-dashboard/internal/constants"
	"github.com/sarthwa8/digital-twin-dashboard/internal/metrics_collectors"
	"github.com/sarthwa8/digital-twin-dashboard/internal/mocks"
	"github.com/sarthwa8/digital-twin-dashboard/internal/registry"
	"github.com/sarthwa8/digital-twin-dashboard/internal/services"
	"github.com/sarthwa8/digital-twin-dashboard/internal/state_managers"
	"github.com/sarthwa8/digital-twin-dashboard/internal/utils"
	"github.com/sarthwa8/digital-twin-dashboard/pkg/mqtt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	name     string
	log      *[]string
	startErr error
	stopErr  error
}

func (s *recordingService) Start() error {
	*s.log = append(*s.log, "start "+s.name)
	return s.startErr
}

func (s *recordingService) Stop() error {
	*s.log = append(*s.log, "stop "+s.name)
	return s.stopErr
}

func TestServiceRegistry_StartInOrderStopInReverse(t *testing.T) {
	var log []string
	sr := NewServiceRegistry(zerolog.Nop())
	sr.RegisterService("a", &recordingService{name: "a", log: &log})
	sr.RegisterService("b", &recordingService{name: "b", log: &log})
	sr.RegisterService("c", &recordingService{name: "c", log: &log})

	require.NoError(t, sr.StartServices())
	require.NoError(t, sr.StopServices())

	assert.Equal(t, []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}, log)
	assert.Equal(t, []string{"a", "b", "c"}, sr.Names())
}

func TestServiceRegistry_DuplicateIsIgnored(t *testing.T) {
	var log []string
	sr := NewServiceRegistry(zerolog.Nop())
	first := &recordingService{name: "first", log: &log}
	sr.RegisterService("svc", first)
	sr.RegisterService("svc", &recordingService{name: "second", log: &log})

	svc, ok := sr.Get("svc")
	require.True(t, ok)
	assert.Same(t, first, svc)
}

func TestServiceRegistry_StartFailureRollsBack(t *testing.T) {
	var log []string
	sr := NewServiceRegistry(zerolog.Nop())
	sr.RegisterService("a", &recordingService{name: "a", log: &log})
	sr.RegisterService("b", &recordingService{name: "b", log: &log})
	sr.RegisterService("c", &recordingService{name: "c", log: &log, startErr: errors.New("port in use")})
	sr.RegisterService("d", &recordingService{name: "d", log: &log})

	err := sr.StartServices()

	assert.EqualError(t, err, "failed to start c: port in use")
	assert.Equal(t, []string{"start a", "start b", "start c", "stop b", "stop a"}, log)
}

func TestServiceRegistry_StopJoinsErrors(t *testing.T) {
	var log []string
	sr := NewServiceRegistry(zerolog.Nop())
	sr.RegisterService("a", &recordingService{name: "a", log: &log, stopErr: errors.New("boom")})
	sr.RegisterService("b", &recordingService{name: "b", log: &log, stopErr: errors.New("bang")})

	err := sr.StopServices()

	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to stop a: boom")
	assert.ErrorContains(t, err, "failed to stop b: bang")
	assert.Equal(t, []string{"stop b", "stop a"}, log)
}

func testConfig(serverEnabled bool) *utils.Config {
	config := &utils.Config{}
	config.MQTT.Broker = "tcp://localhost:1883"
	config.MQTT.ClientID = "dashboard-test"
	qos := 1
	config.MQTT.QOS = &qos
	config.MQTT.ReconnectDelay = 5 * time.Second
	config.Server.Enabled = serverEnabled
	config.Server.Addr = "127.0.0.1:0"
	return config
}

func testDependencies(t *testing.T, factory mqtt.ClientFactory) Dependencies {
	t.Helper()
	channels, err := registry.NewChannelRegistry(registry.DefaultTopics(constants.DefaultNamespace))
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	metrics, err := metrics_collectors.NewTelemetryMetrics(reg)
	require.NoError(t, err)

	return Dependencies{
		Channels:      channels,
		Snapshots:     state_managers.NewSnapshotManager(zerolog.Nop()),
		Metrics:       metrics,
		Gatherer:      reg,
		ClientFactory: factory,
		Clock:         mocks.NewManualClock(),
	}
}

func TestRegisterServices(t *testing.T) {
	sr := NewServiceRegistry(zerolog.Nop())
	require.NoError(t, sr.RegisterServices(testConfig(true), testDependencies(t, new(mocks.MockClientFactory))))

	assert.Equal(t, []string{"dashboard", "connection"}, sr.Names())

	svc, ok := sr.Get("connection")
	require.True(t, ok)
	conn := svc.(*services.ConnectionService)
	assert.Equal(t, "tcp://localhost:1883", conn.Config.Options.Broker)
	assert.Equal(t, byte(1), conn.Config.QOS)
	assert.Equal(t, 5*time.Second, conn.Config.ReconnectDelay)
	assert.True(t, conn.Config.Options.CleanSession)
}

func TestRegisterServices_DashboardDisabled(t *testing.T) {
	sr := NewServiceRegistry(zerolog.Nop())
	require.NoError(t, sr.RegisterServices(testConfig(false), testDependencies(t, new(mocks.MockClientFactory))))

	assert.Equal(t, []string{"connection"}, sr.Names())
}

func TestRegisterServices_MissingDependencies(t *testing.T) {
	sr := NewServiceRegistry(zerolog.Nop())
	assert.Error(t, sr.RegisterServices(testConfig(false), Dependencies{}))
}

func TestRegisteredServices_Lifecycle(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Connect").Return(mocks.NewDoneToken(nil))
	client.On("Disconnect", uint(constants.DisconnectQuiesce)).Return()
	factory := new(mocks.MockClientFactory)
	factory.On("NewClient", mock.Anything, mock.Anything).Return(client, nil)

	deps := testDependencies(t, factory)
	sr := NewServiceRegistry(zerolog.Nop())
	require.NoError(t, sr.RegisterServices(testConfig(true), deps))

	require.NoError(t, sr.StartServices())
	assert.Equal(t, constants.StateConnecting, deps.Snapshots.Current().Connection)

	require.NoError(t, sr.StopServices())
	assert.Equal(t, constants.StateDisconnected, deps.Snapshots.Current().Connection)
	client.AssertExpectations(t)
}
