package services

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sarthwa8/digital-twin-dashboard/internal/constants"
	"github.com/sarthwa8/digital-twin-dashboard/internal/decoder"
	"github.com/sarthwa8/digital-twin-dashboard/internal/history"
	"github.com/sarthwa8/digital-twin-dashboard/internal/metrics_collectors"
	"github.com/sarthwa8/digital-twin-dashboard/internal/models"
	"github.com/sarthwa8/digital-twin-dashboard/internal/registry"
)

// ErrUnknownTopic is returned by Route for a topic that maps to no channel.
var ErrUnknownTopic = errors.New("topic does not belong to any channel")

// SnapshotWriter replaces the published snapshot.
type SnapshotWriter interface {
	Current() models.Snapshot
	Update(fn func(models.Snapshot) models.Snapshot) models.Snapshot
}

// TelemetryRouter decodes incoming messages and applies them to the snapshot.
// Routing is sequential: messages are applied exactly in the order Route is called.
type TelemetryRouter struct {
	resolver  registry.ChannelResolver
	decoder   decoder.Decoder
	snapshots SnapshotWriter
	metrics   metrics_collectors.TelemetryRecorder
	logger    zerolog.Logger

	mu      sync.Mutex
	windows map[constants.ChannelName]*history.Window[models.Sample]
}

// NewTelemetryRouter creates a router with an empty history window for every
// time-series channel of resolver.
func NewTelemetryRouter(
	resolver registry.ChannelResolver,
	dec decoder.Decoder,
	snapshots SnapshotWriter,
	metrics metrics_collectors.TelemetryRecorder,
	logger zerolog.Logger,
) *TelemetryRouter {
	if metrics == nil {
		metrics = metrics_collectors.NopRecorder{}
	}

	windows := make(map[constants.ChannelName]*history.Window[models.Sample])
	for _, ch := range resolver.All() {
		if ch.IsTimeSeries() {
			windows[ch.Name] = history.NewWindow[models.Sample](constants.HistoryCapacity)
		}
	}

	return &TelemetryRouter{
		resolver:  resolver,
		decoder:   dec,
		snapshots: snapshots,
		metrics:   metrics,
		logger:    logger,
		windows:   windows,
	}
}

// Route applies one message. Messages on unknown topics and payloads that fail
// to decode are dropped: the snapshot is left untouched and the reason is
// returned for the caller's information only.
func (r *TelemetryRouter) Route(transportID string, payload []byte) error {
	ch, ok := r.resolver.Resolve(transportID)
	if !ok {
		r.metrics.MessageDropped("", constants.DropUnknownTopic)
		r.logger.Warn().Str("topic", transportID).Msg("Dropping message on unknown topic")
		return ErrUnknownTopic
	}

	sample, err := r.decoder.Decode(ch.Name, payload)
	if err != nil {
		reason := constants.DropMalformed
		if errors.Is(err, decoder.ErrSchemaMismatch) {
			reason = constants.DropSchema
		}
		r.metrics.MessageDropped(string(ch.Name), reason)
		r.logger.Warn().Err(err).Str("channel", string(ch.Name)).Str("topic", transportID).Msg("Dropping undecodable payload")
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state := models.ChannelState{Latest: sample}
	if window, ok := r.windows[ch.Name]; ok {
		window.Push(sample)
		state.History = window.Items()
		r.metrics.HistoryLength(ch.Name, window.Len())
	}

	snap := r.snapshots.Update(func(s models.Snapshot) models.Snapshot {
		return s.WithChannel(ch.Name, state)
	})

	r.metrics.MessageRouted(ch.Name)
	r.logger.Debug().
		Str("channel", string(ch.Name)).
		Uint64("sequence", snap.Sequence).
		Int("history", len(state.History)).
		Msg("Telemetry sample applied")
	return nil
}
