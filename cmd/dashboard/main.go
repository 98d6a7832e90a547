package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/sarthwa8/digital-twin-dashboard/internal/metrics_collectors"
	"github.com/sarthwa8/digital-twin-dashboard/internal/registry"
	"github.com/sarthwa8/digital-twin-dashboard/internal/service_registry"
	"github.com/sarthwa8/digital-twin-dashboard/internal/state_managers"
	"github.com/sarthwa8/digital-twin-dashboard/internal/utils"
	"github.com/sarthwa8/digital-twin-dashboard/pkg/file"
	"github.com/sarthwa8/digital-twin-dashboard/pkg/mqtt"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}
	logger = newLogger(config)

	// Generate a unique MQTT Client ID by appending a UUID
	config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", config.MQTT.ClientID).Msg("Using MQTT Client ID")

	channels, err := registry.NewChannelRegistry(config.ChannelTopics(registry.DefaultTopics))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build channel registry")
	}
	for _, ch := range channels.All() {
		logger.Info().Str("channel", string(ch.Name)).Str("topic", ch.TransportID).Str("kind", string(ch.Kind)).Msg("Channel registered")
	}

	metrics, err := metrics_collectors.NewTelemetryMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to register metrics")
	}

	serviceRegistry := service_registry.NewServiceRegistry(logger)
	err = serviceRegistry.RegisterServices(config, service_registry.Dependencies{
		Channels:      channels,
		Snapshots:     state_managers.NewSnapshotManager(logger.With().Str("component", "snapshots").Logger()),
		Metrics:       metrics,
		Gatherer:      prometheus.DefaultGatherer,
		ClientFactory: mqtt.NewMqttService(fileClient),
		Clock:         utils.NewRealClock(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to register services")
	}

	if err := serviceRegistry.StartServices(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start services")
	}
	logger.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Some services failed to stop")
		os.Exit(1)
	}
}

func newLogger(config *utils.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(config.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if config.Logging.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
