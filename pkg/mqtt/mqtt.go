package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sarthwa8/digital-twin-dashboard/pkg/file"
)

// MQTTClient defines the interface for an MQTT client.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// Options holds everything needed to reach the broker.
type Options struct {
	Broker             string
	ClientID           string
	Username           string
	Password           string
	CACertificate      string // optional path to a PEM bundle
	InsecureSkipVerify bool
	CleanSession       bool
	KeepAlive          time.Duration
	ConnectTimeout     time.Duration
}

// Handlers are the transport events surfaced to the owner of a client.
// OnClosed is for transports reporting an orderly close; paho only ever reports
// abnormal losses, so clients built by MqttService never call it.
type Handlers struct {
	OnConnect        func()
	OnConnectionLost func(err error)
	OnClosed         func()
}

// ClientFactory builds a fresh, unconnected client for every connect attempt.
type ClientFactory interface {
	NewClient(opts Options, handlers Handlers) (MQTTClient, error)
}

// MqttService builds paho clients.
type MqttService struct {
	fileClient file.FileOperations
	newClient  func(*mqtt.ClientOptions) MQTTClient
}

var _ ClientFactory = (*MqttService)(nil)

// NewMqttService creates a new MqttService instance.
func NewMqttService(fileClient file.FileOperations) *MqttService {
	return &MqttService{
		fileClient: fileClient,
		newClient: func(o *mqtt.ClientOptions) MQTTClient {
			return mqtt.NewClient(o)
		},
	}
}

// NewClient returns an unconnected client. Paho's own reconnect logic is
// disabled: reconnect policy belongs to the caller.
func (s *MqttService) NewClient(opts Options, handlers Handlers) (MQTTClient, error) {
	clientOpts, err := s.ClientOptions(opts, handlers)
	if err != nil {
		return nil, err
	}
	return s.newClient(clientOpts), nil
}

// ClientOptions translates opts and handlers into paho client options.
func (s *MqttService) ClientOptions(opts Options, handlers Handlers) (*mqtt.ClientOptions, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("broker address is required")
	}

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetCleanSession(opts.CleanSession)
	clientOpts.SetAutoReconnect(false)
	clientOpts.SetConnectRetry(false)
	clientOpts.SetOrderMatters(true)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}
	if opts.KeepAlive > 0 {
		clientOpts.SetKeepAlive(opts.KeepAlive)
	}
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	}

	tlsConfig, err := s.tlsConfig(opts)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		clientOpts.SetTLSConfig(tlsConfig)
	}

	if handlers.OnConnect != nil {
		clientOpts.SetOnConnectHandler(func(mqtt.Client) {
			handlers.OnConnect()
		})
	}
	if handlers.OnConnectionLost != nil {
		clientOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			handlers.OnConnectionLost(err)
		})
	}

	return clientOpts, nil
}

// tlsConfig returns nil when the defaults of the broker scheme are good enough.
func (s *MqttService) tlsConfig(opts Options) (*tls.Config, error) {
	if opts.CACertificate == "" && !opts.InsecureSkipVerify {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}

	if opts.CACertificate != "" {
		caCert, err := s.fileClient.ReadFileRaw(opts.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to append CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}
