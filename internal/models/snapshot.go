package models

import (
	"slices"

	"github.com/sarthwa8/digital-twin-dashboard/internal/constants"
)

// ChannelState is the observable state of one channel. Latest is nil until the
// first sample arrives; History is only populated for time-series channels.
type ChannelState struct {
	Latest  Sample   `json:"latest"`
	History []Sample `json:"history,omitempty"`
}

// Snapshot is the externally visible aggregate. A Snapshot is never modified
// once published: the With* methods return a new value and share every
// untouched channel with the receiver.
type Snapshot struct {
	Sequence   uint64                                 `json:"sequence"`
	Connection constants.ConnectionState              `json:"connection"`
	Channels   map[constants.ChannelName]ChannelState `json:"channels"`
}

// NewSnapshot returns the startup snapshot: disconnected, no samples.
func NewSnapshot() Snapshot {
	channels := make(map[constants.ChannelName]ChannelState, len(constants.ChannelOrder))
	for _, name := range constants.ChannelOrder {
		channels[name] = ChannelState{}
	}
	return Snapshot{
		Connection: constants.StateDisconnected,
		Channels:   channels,
	}
}

// Latest returns the most recent sample of a channel, if any.
func (s Snapshot) Latest(name constants.ChannelName) (Sample, bool) {
	cs, ok := s.Channels[name]
	if !ok || cs.Latest == nil {
		return nil, false
	}
	return cs.Latest, true
}

// History returns a copy of a channel's history, oldest first.
func (s Snapshot) History(name constants.ChannelName) []Sample {
	return slices.Clone(s.Channels[name].History)
}

// WithConnection returns a copy of s with only the connection state replaced.
func (s Snapshot) WithConnection(state constants.ConnectionState) Snapshot {
	s.Connection = state
	return s
}

// WithChannel returns a copy of s with only one channel's state replaced.
func (s Snapshot) WithChannel(name constants.ChannelName, cs ChannelState) Snapshot {
	channels := make(map[constants.ChannelName]ChannelState, len(s.Channels))
	for k, v := range s.Channels {
		channels[k] = v
	}
	channels[name] = cs
	s.Channels = channels
	return s
}
