package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sarthwa8/digital-twin-dashboard/internal/constants"
	"github.com/sarthwa8/digital-twin-dashboard/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	MQTT struct {
		Broker             string        `yaml:"broker"`               // MQTT broker address, e.g. wss://host:443/mqtt
		ClientID           string        `yaml:"client_id"`            // Client ID prefix, a UUID is appended at startup
		Username           string        `yaml:"username"`             // Overridden by MQTT_USERNAME
		Password           string        `yaml:"password"`             // Overridden by MQTT_PASSWORD
		CACertificate      string        `yaml:"ca_certificate"`       // Path to the CA certificate
		InsecureSkipVerify bool          `yaml:"insecure_skip_verify"` // Skip broker certificate verification
		QOS                *int          `yaml:"qos"`                  // Subscription QoS level, defaults to 1
		CleanSession       *bool         `yaml:"clean_session"`        // Defaults to true
		KeepAlive          time.Duration `yaml:"keep_alive"`           // Keep alive interval
		ConnectTimeout     time.Duration `yaml:"connect_timeout"`      // Timeout of a single connect attempt
		ReconnectDelay     time.Duration `yaml:"reconnect_delay"`      // Fixed wait before reconnecting after an error
	} `yaml:"mqtt"`

	Channels struct {
		Namespace string            `yaml:"namespace"` // Topic prefix of the default layout
		Topics    map[string]string `yaml:"topics"`    // Per-channel topic overrides
	} `yaml:"channels"`

	Server struct {
		Enabled      bool   `yaml:"enabled"`       // Enable/disable the dashboard HTTP service
		Addr         string `yaml:"addr"`          // Listen address
		StreamBuffer int    `yaml:"stream_buffer"` // Snapshots queued per stream client
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`  // zerolog level name
		Pretty bool   `yaml:"pretty"` // Human readable console output
	} `yaml:"logging"`
}

const (
	defaultClientID     = "dashboard"
	defaultServerAddr   = ":8080"
	defaultStreamBuffer = 8
	defaultLogLevel     = "info"

	envMQTTUsername = "MQTT_USERNAME"
	envMQTTPassword = "MQTT_PASSWORD"
)

// LoadConfig loads the YAML configuration from the specified file, applies
// defaults and environment overrides, and validates the result.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	exists, err := fileClient.IsFileExists(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config %s: %w", filename, err)
	}
	if !exists {
		return nil, fmt.Errorf("config %s: %w", filename, os.ErrNotExist)
	}

	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", filename, err)
	}

	config.applyDefaults()
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = defaultClientID
	}
	if c.MQTT.QOS == nil {
		qos := int(constants.DefaultQoS)
		c.MQTT.QOS = &qos
	}
	if c.MQTT.CleanSession == nil {
		clean := true
		c.MQTT.CleanSession = &clean
	}
	if c.MQTT.KeepAlive == 0 {
		c.MQTT.KeepAlive = constants.DefaultKeepAlive
	}
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = constants.DefaultConnectTimeout
	}
	if c.MQTT.ReconnectDelay == 0 {
		c.MQTT.ReconnectDelay = constants.DefaultReconnectDelay
	}
	if c.Channels.Namespace == "" {
		c.Channels.Namespace = constants.DefaultNamespace
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
	if c.Server.StreamBuffer == 0 {
		c.Server.StreamBuffer = defaultStreamBuffer
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(envMQTTUsername); ok {
		c.MQTT.Username = v
	}
	if v, ok := os.LookupEnv(envMQTTPassword); ok {
		c.MQTT.Password = v
	}
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required"))
	}
	if c.MQTT.QOS != nil && (*c.MQTT.QOS < 0 || *c.MQTT.QOS > 2) {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", *c.MQTT.QOS))
	}
	if c.MQTT.ReconnectDelay < 0 {
		errs = append(errs, errors.New("mqtt.reconnect_delay must not be negative"))
	}
	for name := range c.Channels.Topics {
		if _, ok := constants.ChannelKinds[constants.ChannelName(name)]; !ok {
			errs = append(errs, fmt.Errorf("channels.topics: unknown channel %q", name))
		}
	}
	if c.Server.StreamBuffer < 0 {
		errs = append(errs, errors.New("server.stream_buffer must not be negative"))
	}
	return errors.Join(errs...)
}

// ChannelTopics returns the topic of every channel: the namespace layout with
// per-channel overrides applied.
func (c *Config) ChannelTopics(defaults func(namespace string) map[constants.ChannelName]string) map[constants.ChannelName]string {
	topics := defaults(c.Channels.Namespace)
	for name, topic := range c.Channels.Topics {
		topics[constants.ChannelName(name)] = topic
	}
	return topics
}
