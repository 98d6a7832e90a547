package constants

// ChannelName identifies one logical telemetry stream.
type ChannelName string

const (
	ChannelIMU     ChannelName = "imu"
	ChannelPower   ChannelName = "power"
	ChannelThermal ChannelName = "thermal"
	ChannelFault   ChannelName = "fault"
	ChannelStatus  ChannelName = "status"
)

// ChannelKind tells whether a channel keeps history or only a latest value.
type ChannelKind string

const (
	KindTimeSeries ChannelKind = "timeseries"
	KindSingleton  ChannelKind = "singleton"
)

// ChannelOrder is the fixed order channels are listed and subscribed in.
var ChannelOrder = []ChannelName{
	ChannelIMU,
	ChannelPower,
	ChannelThermal,
	ChannelFault,
	ChannelStatus,
}

// ChannelKinds maps every channel to its kind. It never changes at runtime.
var ChannelKinds = map[ChannelName]ChannelKind{
	ChannelIMU:     KindTimeSeries,
	ChannelPower:   KindTimeSeries,
	ChannelThermal: KindTimeSeries,
	ChannelFault:   KindSingleton,
	ChannelStatus:  KindSingleton,
}

// DefaultNamespace is the topic prefix used by the motor sensor publisher.
const DefaultNamespace = "digitaltwin/motor"

// DefaultTopicSuffixes are appended to the namespace unless a topic is configured explicitly.
var DefaultTopicSuffixes = map[ChannelName]string{
	ChannelIMU:     "sensors/imu",
	ChannelPower:   "sensors/power",
	ChannelThermal: "sensors/thermal",
	ChannelFault:   "fault/prediction",
	ChannelStatus:  "status",
}

// HistoryCapacity is the number of samples retained per time-series channel.
const HistoryCapacity = 60
