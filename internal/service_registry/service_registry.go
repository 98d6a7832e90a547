package service_registry

import (
	"errors"
	"fmt"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/sarthwa8/digital-twin-dashboard/internal/decoder"
	"github.com/sarthwa8/digital-twin-dashboard/internal/metrics_collectors"
	"github.com/sarthwa8/digital-twin-dashboard/internal/registry"
	"github.com/sarthwa8/digital-twin-dashboard/internal/services"
	"github.com/sarthwa8/digital-twin-dashboard/internal/state_managers"
	"github.com/sarthwa8/digital-twin-dashboard/internal/utils"
	"github.com/sarthwa8/digital-twin-dashboard/pkg/mqtt"
)

// Dependencies are the shared collaborators handed to registered services.
type Dependencies struct {
	Channels      registry.ChannelResolver
	Snapshots     *state_managers.SnapshotManager
	Metrics       metrics_collectors.TelemetryRecorder
	Gatherer      prometheus.Gatherer
	ClientFactory mqtt.ClientFactory
	Clock         utils.Clock
}

// ServiceRegistry manages the lifecycle of the dashboard services. Services
// start in registration order and stop in reverse.
type ServiceRegistry struct {
	services *orderedmap.OrderedMap[string, registry.Service]
	Logger   zerolog.Logger
}

// NewServiceRegistry initializes an empty service registry.
func NewServiceRegistry(logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: orderedmap.NewOrderedMap[string, registry.Service](),
		Logger:   logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services.Get(name); exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services.Set(name, svc)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Get returns a registered service by name.
func (sr *ServiceRegistry) Get(name string) (registry.Service, bool) {
	return sr.services.Get(name)
}

// Names lists the registered services in start order.
func (sr *ServiceRegistry) Names() []string {
	return sr.services.Keys()
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	var started []string

	for el := sr.services.Front(); el != nil; el = el.Next() {
		sr.Logger.Info().Msgf("Starting service: %s", el.Key)
		if err := el.Value.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", el.Key)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(started) - 1; i >= 0; i-- {
				svc, _ := sr.services.Get(started[i])
				if stopErr := svc.Stop(); stopErr != nil {
					sr.Logger.Error().Err(stopErr).Msgf("Failed to stop service: %s", started[i])
				}
			}
			return fmt.Errorf("failed to start %s: %w", el.Key, err)
		}
		started = append(started, el.Key)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for el := sr.services.Back(); el != nil; el = el.Prev() {
		sr.Logger.Info().Msgf("Stopping service: %s", el.Key)
		if err := el.Value.Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", el.Key, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices builds and registers the enabled services from config.
// The dashboard comes first so consumers can attach before telemetry flows.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, deps Dependencies) error {
	if deps.Channels == nil || deps.Snapshots == nil || deps.ClientFactory == nil {
		return errors.New("channels, snapshots and client factory are required")
	}

	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (registry.Service, error)
	}{
		{
			name:    "dashboard",
			enabled: config.Server.Enabled,
			constructor: func() (registry.Service, error) {
				return services.NewDashboardService(
					services.DashboardConfig{
						Addr:         config.Server.Addr,
						StreamBuffer: config.Server.StreamBuffer,
					},
					deps.Snapshots,
					deps.Channels,
					deps.Gatherer,
					sr.Logger.With().Str("service", "dashboard").Logger(),
				), nil
			},
		},
		{
			name:    "connection",
			enabled: true,
			constructor: func() (registry.Service, error) {
				router := services.NewTelemetryRouter(
					deps.Channels,
					decoder.NewPayloadDecoder(deps.Clock),
					deps.Snapshots,
					deps.Metrics,
					sr.Logger.With().Str("service", "router").Logger(),
				)
				return services.NewConnectionService(
					connectionConfig(config),
					deps.ClientFactory,
					deps.Channels,
					router,
					deps.Snapshots,
					deps.Clock,
					deps.Metrics,
					sr.Logger.With().Str("service", "connection").Logger(),
				), nil
			},
		},
	}

	for _, s := range servicesInOrder {
		if !s.enabled {
			continue
		}
		svc, err := s.constructor()
		if err != nil {
			return fmt.Errorf("failed to create %s service: %w", s.name, err)
		}
		sr.RegisterService(s.name, svc)
	}
	return nil
}

func connectionConfig(config *utils.Config) services.ConnectionConfig {
	cfg := services.ConnectionConfig{
		Options: mqtt.Options{
			Broker:             config.MQTT.Broker,
			ClientID:           config.MQTT.ClientID,
			Username:           config.MQTT.Username,
			Password:           config.MQTT.Password,
			CACertificate:      config.MQTT.CACertificate,
			InsecureSkipVerify: config.MQTT.InsecureSkipVerify,
			KeepAlive:          config.MQTT.KeepAlive,
			ConnectTimeout:     config.MQTT.ConnectTimeout,
			CleanSession:       true,
		},
		ReconnectDelay: config.MQTT.ReconnectDelay,
	}
	if config.MQTT.QOS != nil {
		cfg.QOS = byte(*config.MQTT.QOS)
	}
	if config.MQTT.CleanSession != nil {
		cfg.Options.CleanSession = *config.MQTT.CleanSession
	}
	return cfg
}
