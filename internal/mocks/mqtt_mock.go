package mocks

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
	pkgmqtt "github.com/sarthwa8/digital-twin-dashboard/pkg/mqtt"
	"github.com/stretchr/testify/mock"
)

// MockMQTTClient is a mock implementation of the MQTTClient interface
type MockMQTTClient struct {
	mock.Mock
}

var _ pkgmqtt.MQTTClient = (*MockMQTTClient)(nil)

func (m *MockMQTTClient) Connect() mqtt.Token {
	args := m.Called()
	return args.Get(0).(mqtt.Token)
}

func (m *MockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(mqtt.Token)
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	args := m.Called(topic, qos, callback)
	return args.Get(0).(mqtt.Token)
}

func (m *MockMQTTClient) Unsubscribe(topics ...string) mqtt.Token {
	args := m.Called(topics)
	return args.Get(0).(mqtt.Token)
}

func (m *MockMQTTClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

// MockClientFactory is a mock implementation of the ClientFactory interface.
// Handlers passed to NewClient are recorded so tests can fire transport events.
type MockClientFactory struct {
	mock.Mock
	Handlers []pkgmqtt.Handlers
}

var _ pkgmqtt.ClientFactory = (*MockClientFactory)(nil)

func (m *MockClientFactory) NewClient(opts pkgmqtt.Options, handlers pkgmqtt.Handlers) (pkgmqtt.MQTTClient, error) {
	m.Handlers = append(m.Handlers, handlers)
	args := m.Called(opts, handlers)
	client, _ := args.Get(0).(pkgmqtt.MQTTClient)
	return client, args.Error(1)
}

// LastHandlers returns the handlers of the most recent NewClient call.
func (m *MockClientFactory) LastHandlers() pkgmqtt.Handlers {
	return m.Handlers[len(m.Handlers)-1]
}
