package constants

import "time"

// ConnectionState is the broker connection lifecycle state.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateErrored      ConnectionState = "errored"
)

const (
	// DefaultReconnectDelay is the fixed wait between an error and the next connect attempt.
	DefaultReconnectDelay = 5 * time.Second

	// DefaultConnectTimeout bounds a single connect attempt.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultKeepAlive is the MQTT keep alive interval.
	DefaultKeepAlive = 60 * time.Second

	// DefaultQoS is the subscription quality of service.
	DefaultQoS byte = 1

	// UnsubscribeTimeout bounds the wait for the broker to acknowledge an unsubscribe on stop.
	UnsubscribeTimeout = 2 * time.Second

	// DisconnectQuiesce is how long (ms) the client waits for in-flight work on disconnect.
	DisconnectQuiesce = 250
)
