package constants

// Fault classes produced by the upstream bearing fault classifier.
const (
	FaultNormal    = "Normal"
	FaultInnerRace = "InnerRace"
	FaultBall      = "Ball"
	FaultOuterRace = "OuterRace"
)

// Drop reasons reported by the telemetry router.
const (
	DropUnknownTopic = "unknown_topic"
	DropMalformed    = "malformed"
	DropSchema       = "schema"
)
