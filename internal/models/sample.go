package models

import (
	"time"

	"github.com/sarthwa8/digital-twin-dashboard/internal/constants"
)

// Sample is one decoded telemetry reading. Implementations are value types and
// are never modified after the decoder builds them.
type Sample interface {
	ChannelName() constants.ChannelName
	ReceivedTime() time.Time
}

// Vector3 is a three-axis reading.
type Vector3 struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	Unit string  `json:"unit,omitempty"`
}

// IMUSample is an accelerometer + gyroscope reading from the motor housing.
type IMUSample struct {
	Timestamp     string    `json:"timestamp,omitempty"`
	Accelerometer Vector3   `json:"accelerometer"`
	Gyroscope     Vector3   `json:"gyroscope"`
	SampleRateHz  float64   `json:"sample_rate_hz,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
}

func (IMUSample) ChannelName() constants.ChannelName { return constants.ChannelIMU }
func (s IMUSample) ReceivedTime() time.Time { return s.ReceivedAt }

// PowerSample is a power analyzer reading.
type PowerSample struct {
	Timestamp     string            `json:"timestamp,omitempty"`
	Voltage       float64           `json:"voltage"`
	Current       float64           `json:"current"`
	Power         float64           `json:"power"`
	ApparentPower float64           `json:"apparent_power"`
	ReactivePower *float64          `json:"reactive_power,omitempty"`
	PowerFactor   float64           `json:"power_factor"`
	Frequency     float64           `json:"frequency"`
	Units         map[string]string `json:"units,omitempty"`
	ReceivedAt    time.Time         `json:"received_at"`
}

func (PowerSample) ChannelName() constants.ChannelName { return constants.ChannelPower }
func (s PowerSample) ReceivedTime() time.Time { return s.ReceivedAt }

// ThermalSample is a single temperature probe reading.
type ThermalSample struct {
	Timestamp   string    `json:"timestamp,omitempty"`
	Temperature float64   `json:"temperature"`
	Unit        string    `json:"unit,omitempty"`
	Location    string    `json:"location,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}

func (ThermalSample) ChannelName() constants.ChannelName { return constants.ChannelThermal }
func (s ThermalSample) ReceivedTime() time.Time { return s.ReceivedAt }

// FaultPrediction is the output of the upstream fault classifier. Probabilities
// and Confidence are percentages.
type FaultPrediction struct {
	Timestamp      string             `json:"timestamp,omitempty"`
	Model          string             `json:"model,omitempty"`
	Classes        int                `json:"classes,omitempty"`
	PredictedClass string             `json:"predicted_class"`
	Confidence     float64            `json:"confidence"`
	Probabilities  map[string]float64 `json:"probabilities"`
	Threshold      *float64           `json:"threshold,omitempty"`
	ReceivedAt     time.Time          `json:"received_at"`
}

func (FaultPrediction) ChannelName() constants.ChannelName { return constants.ChannelFault }
func (s FaultPrediction) ReceivedTime() time.Time { return s.ReceivedAt }

// IsFault reports whether the predicted class is anything other than normal operation.
func (s FaultPrediction) IsFault() bool {
	return s.PredictedClass != constants.FaultNormal
}

// AboveThreshold reports whether the confidence reaches the classifier threshold.
// Without a threshold every prediction counts.
func (s FaultPrediction) AboveThreshold() bool {
	if s.Threshold == nil {
		return true
	}
	return s.Confidence >= *s.Threshold
}

// MotorStatus is the operating status published by the motor controller.
type MotorStatus struct {
	Timestamp    string    `json:"timestamp,omitempty"`
	Status       string    `json:"status,omitempty"`
	Running      bool      `json:"running"`
	RPM          float64   `json:"rpm"`
	CurrentFault string    `json:"current_fault"`
	ReceivedAt   time.Time `json:"received_at"`
}

func (MotorStatus) ChannelName() constants.ChannelName { return constants.ChannelStatus }
func (s MotorStatus) ReceivedTime() time.Time { return s.ReceivedAt }
