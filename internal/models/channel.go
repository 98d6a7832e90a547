package models

import "github.com/sarthwa8/digital-twin-dashboard/internal/constants"

// Channel describes one logical telemetry source and the topic it is published on.
type Channel struct {
	Name        constants.ChannelName `json:"name"`
	TransportID string                `json:"transport_id"`
	Kind        constants.ChannelKind `json:"kind"`
}

// IsTimeSeries reports whether the channel keeps a history window.
func (c Channel) IsTimeSeries() bool {
	return c.Kind == constants.KindTimeSeries
}
