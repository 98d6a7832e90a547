package services

import (
	"fmt"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/sarthwa8/digital-twin-dashboard/internal/constants"
	"github.com/sarthwa8/digital-twin-dashboard/internal/metrics_collectors"
	"github.com/sarthwa8/digital-twin-dashboard/internal/models"
	"github.com/sarthwa8/digital-twin-dashboard/internal/registry"
	"github.com/sarthwa8/digital-twin-dashboard/internal/utils"
	"github.com/sarthwa8/digital-twin-dashboard/pkg/mqtt"
)

// MessageRouter applies one inbound message.
type MessageRouter interface {
	Route(transportID string, payload []byte) error
}

// ConnectionConfig holds the broker settings of a ConnectionService.
type ConnectionConfig struct {
	Options        mqtt.Options
	QOS            byte
	ReconnectDelay time.Duration
}

// ConnectionService owns the broker connection lifecycle. Every transport
// event (connect ack, message, loss, close, reconnect timer) is handled under
// one mutex, so each is fully applied and published before the next one runs.
//
// Each connect attempt uses a fresh client tagged with a generation number;
// events raised by a client from an older generation are ignored.
type ConnectionService struct {
	Config    ConnectionConfig
	Factory   mqtt.ClientFactory
	Channels  registry.ChannelResolver
	Router    MessageRouter
	Snapshots SnapshotWriter
	Clock     utils.Clock
	Metrics   metrics_collectors.TelemetryRecorder
	Logger    zerolog.Logger

	mu         sync.Mutex
	state      constants.ConnectionState
	client     mqtt.MQTTClient
	generation uint64
	timer      utils.Timer
}

var _ registry.Service = (*ConnectionService)(nil)

// NewConnectionService creates a disconnected ConnectionService.
func NewConnectionService(config ConnectionConfig, factory mqtt.ClientFactory, channels registry.ChannelResolver,
	router MessageRouter, snapshots SnapshotWriter, clock utils.Clock,
	metrics metrics_collectors.TelemetryRecorder, logger zerolog.Logger) *ConnectionService {

	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = constants.DefaultReconnectDelay
	}
	if clock == nil {
		clock = utils.NewRealClock()
	}
	if metrics == nil {
		metrics = metrics_collectors.NopRecorder{}
	}

	return &ConnectionService{
		Config:    config,
		Factory:   factory,
		Channels:  channels,
		Router:    router,
		Snapshots: snapshots,
		Clock:     clock,
		Metrics:   metrics,
		Logger:    logger,
		state:     constants.StateDisconnected,
	}
}

// State returns the current connection state.
func (c *ConnectionService) State() constants.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins connecting. It is a no-op while connecting or connected; from
// errored it connects immediately and drops the pending reconnect.
func (c *ConnectionService) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case constants.StateConnecting, constants.StateConnected:
		c.Logger.Debug().Str("state", string(c.state)).Msg("ConnectionService already started")
		return nil
	}

	c.cancelReconnectLocked()
	c.connectLocked()
	return nil
}

// Stop releases the connection from any state and disables reconnects until
// the next Start.
func (c *ConnectionService) Stop() error {
	c.mu.Lock()
	c.generation++
	c.cancelReconnectLocked()
	client, wasConnected := c.client, c.state == constants.StateConnected
	c.client = nil
	c.transitionLocked(constants.StateDisconnected)
	c.mu.Unlock()

	// The client is released outside the lock: paho waits for in-flight
	// message handlers, which would otherwise block on c.mu.
	if client == nil {
		return nil
	}

	if wasConnected {
		channels := c.Channels.All()
		topics := make([]string, 0, len(channels))
		for _, ch := range channels {
			topics = append(topics, ch.TransportID)
		}
		token := client.Unsubscribe(topics...)
		if !token.WaitTimeout(constants.UnsubscribeTimeout) {
			c.Logger.Warn().Strs("topics", topics).Msg("Timed out unsubscribing from telemetry topics")
		} else if err := token.Error(); err != nil {
			c.Logger.Warn().Err(err).Strs("topics", topics).Msg("Failed to unsubscribe from telemetry topics")
		}
	}

	client.Disconnect(constants.DisconnectQuiesce)
	c.Logger.Info().Msg("ConnectionService stopped successfully")
	return nil
}

// connectLocked starts a new connect attempt with a fresh client.
func (c *ConnectionService) connectLocked() {
	c.generation++
	gen := c.generation
	c.transitionLocked(constants.StateConnecting)

	client, err := c.Factory.NewClient(c.Config.Options, mqtt.Handlers{
		OnConnect:        func() { c.handleConnect(gen) },
		OnConnectionLost: func(err error) { c.handleError(gen, err) },
		OnClosed:         func() { c.handleClosed(gen) },
	})
	if err != nil {
		c.failLocked(fmt.Errorf("failed to create MQTT client: %w", err))
		return
	}
	c.client = client

	c.Logger.Info().Str("broker", c.Config.Options.Broker).Str("client_id", c.Config.Options.ClientID).Msg("Connecting to MQTT broker")
	token := client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.handleError(gen, fmt.Errorf("failed to connect to MQTT broker: %w", err))
		}
	}()
}

func (c *ConnectionService) handleConnect(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.state != constants.StateConnecting {
		return
	}
	c.transitionLocked(constants.StateConnected)

	handler := c.messageHandler(gen)
	for _, ch := range c.Channels.All() {
		token := c.client.Subscribe(ch.TransportID, c.Config.QOS, handler)
		go c.awaitSubscribe(ch, token)
	}
}

func (c *ConnectionService) awaitSubscribe(ch models.Channel, token MQTT.Token) {
	token.Wait()
	if err := token.Error(); err != nil {
		c.Logger.Error().Err(err).Str("channel", string(ch.Name)).Str("topic", ch.TransportID).Msg("Failed to subscribe to telemetry topic")
		return
	}
	c.Logger.Info().Str("channel", string(ch.Name)).Str("topic", ch.TransportID).Msg("Subscribed to telemetry topic")
}

func (c *ConnectionService) messageHandler(gen uint64) MQTT.MessageHandler {
	return func(_ MQTT.Client, msg MQTT.Message) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if gen != c.generation || c.state != constants.StateConnected {
			return
		}
		// Drops are logged and counted by the router.
		_ = c.Router.Route(msg.Topic(), msg.Payload())
	}
}

func (c *ConnectionService) handleError(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}
	switch c.state {
	case constants.StateConnecting, constants.StateConnected:
		c.failLocked(err)
	}
}

func (c *ConnectionService) handleClosed(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.state != constants.StateConnected {
		return
	}
	c.client = nil
	c.transitionLocked(constants.StateDisconnected)
	c.Logger.Info().Msg("MQTT connection closed by transport")
}

// failLocked moves to errored and schedules exactly one reconnect.
func (c *ConnectionService) failLocked(err error) {
	c.Logger.Error().Err(err).Str("state", string(c.state)).Msg("MQTT transport error")
	c.client = nil
	c.transitionLocked(constants.StateErrored)

	c.cancelReconnectLocked()
	gen := c.generation
	c.timer = c.Clock.AfterFunc(c.Config.ReconnectDelay, func() { c.handleReconnect(gen) })
	c.Metrics.ReconnectScheduled()
	c.Logger.Info().Dur("delay", c.Config.ReconnectDelay).Msg("Reconnect scheduled")
}

func (c *ConnectionService) handleReconnect(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.state != constants.StateErrored {
		return
	}
	c.timer = nil
	c.connectLocked()
}

func (c *ConnectionService) cancelReconnectLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// transitionLocked publishes a snapshot carrying the new state.
func (c *ConnectionService) transitionLocked(next constants.ConnectionState) {
	if c.state == next {
		return
	}
	prev := c.state
	c.state = next

	snap := c.Snapshots.Update(func(s models.Snapshot) models.Snapshot {
		return s.WithConnection(next)
	})
	c.Metrics.ConnectionState(next)
	c.Logger.Info().
		Str("from", string(prev)).
		Str("to", string(next)).
		Uint64("sequence", snap.Sequence).
		Msg("Connection state changed")
}
