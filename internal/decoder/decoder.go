// Package decoder turns raw broker payloads into typed samples.
package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/sarthwa8/digital-twin-dashboard/internal/constants"
	"github.com/sarthwa8/digital-twin-dashboard/internal/models"
	"github.com/sarthwa8/digital-twin-dashboard/internal/utils"
)

// Decoder decodes the payload published on one channel.
type Decoder interface {
	Decode(channel constants.ChannelName, raw []byte) (models.Sample, error)
}

type decodeFunc func(raw []byte, receivedAt time.Time) (models.Sample, error)

// PayloadDecoder validates and decodes the JSON payloads of every channel.
// Numbers are never coerced from strings: a present field with the wrong JSON
// type is a schema mismatch, same as a missing one.
type PayloadDecoder struct {
	clock    utils.Clock
	decoders map[constants.ChannelName]decodeFunc
}

var _ Decoder = (*PayloadDecoder)(nil)

// NewPayloadDecoder creates a decoder stamping samples with clock.Now().
func NewPayloadDecoder(clock utils.Clock) *PayloadDecoder {
	if clock == nil {
		clock = utils.NewRealClock()
	}
	return &PayloadDecoder{
		clock: clock,
		decoders: map[constants.ChannelName]decodeFunc{
			constants.ChannelIMU:     decodeIMU,
			constants.ChannelPower:   decodePower,
			constants.ChannelThermal: decodeThermal,
			constants.ChannelFault:   decodeFault,
			constants.ChannelStatus:  decodeStatus,
		},
	}
}

// Decode parses raw as the payload of channel. Every failure is a *DecodeError.
func (d *PayloadDecoder) Decode(channel constants.ChannelName, raw []byte) (models.Sample, error) {
	fn, ok := d.decoders[channel]
	if !ok {
		return nil, &DecodeError{Channel: channel, Reason: ReasonSchema, Err: ErrUnknownChannel}
	}

	sample, err := fn(raw, d.clock.Now())
	if err != nil {
		var decErr *DecodeError
		if errors.As(err, &decErr) {
			decErr.Channel = channel
			return nil, decErr
		}
		return nil, &DecodeError{Channel: channel, Reason: classify(err), Err: err}
	}
	return sample, nil
}

// unmarshal decodes raw into v and maps encoding/json failures onto a reason.
func unmarshal(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		de := &DecodeError{Reason: classify(err), Err: err}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			de.Field = typeErr.Field
		}
		return de
	}
	return nil
}

func classify(err error) Reason {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return ReasonSchema
	}
	return ReasonMalformed
}

// timestampText keeps the upstream timestamp as text whatever JSON type it was sent as.
func timestampText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		if s, err := strconv.Unquote(string(raw)); err == nil {
			return s
		}
	}
	return string(raw)
}

type vectorWire struct {
	X    *float64 `json:"x"`
	Y    *float64 `json:"y"`
	Z    *float64 `json:"z"`
	Unit string   `json:"unit"`
}

func (v *vectorWire) toVector(prefix string) (models.Vector3, error) {
	if v == nil {
		return models.Vector3{}, missingField(prefix)
	}
	switch {
	case v.X == nil:
		return models.Vector3{}, missingField(prefix + ".x")
	case v.Y == nil:
		return models.Vector3{}, missingField(prefix + ".y")
	case v.Z == nil:
		return models.Vector3{}, missingField(prefix + ".z")
	}
	return models.Vector3{X: *v.X, Y: *v.Y, Z: *v.Z, Unit: v.Unit}, nil
}

type imuWire struct {
	Timestamp     json.RawMessage `json:"timestamp"`
	Accelerometer *vectorWire     `json:"accelerometer"`
	Gyroscope     *vectorWire     `json:"gyroscope"`
	SampleRateHz  *float64        `json:"sample_rate_hz"`
}

func decodeIMU(raw []byte, receivedAt time.Time) (models.Sample, error) {
	var w imuWire
	if err := unmarshal(raw, &w); err != nil {
		return nil, err
	}

	accel, err := w.Accelerometer.toVector("accelerometer")
	if err != nil {
		return nil, err
	}
	gyro, err := w.Gyroscope.toVector("gyroscope")
	if err != nil {
		return nil, err
	}

	s := models.IMUSample{
		Timestamp:     timestampText(w.Timestamp),
		Accelerometer: accel,
		Gyroscope:     gyro,
		ReceivedAt:    receivedAt,
	}
	if w.SampleRateHz != nil {
		s.SampleRateHz = *w.SampleRateHz
	}
	return s, nil
}

type powerWire struct {
	Timestamp     json.RawMessage   `json:"timestamp"`
	Voltage       *float64          `json:"voltage"`
	Current       *float64          `json:"current"`
	Power         *float64          `json:"power"`
	ApparentPower *float64          `json:"apparent_power"`
	ReactivePower *float64          `json:"reactive_power"`
	PowerFactor   *float64          `json:"power_factor"`
	Frequency     *float64          `json:"frequency"`
	Units         map[string]string `json:"units"`
}

func decodePower(raw []byte, receivedAt time.Time) (models.Sample, error) {
	var w powerWire
	if err := unmarshal(raw, &w); err != nil {
		return nil, err
	}

	required := []struct {
		field string
		value *float64
	}{
		{"voltage", w.Voltage},
		{"current", w.Current},
		{"power", w.Power},
		{"power_factor", w.PowerFactor},
		{"frequency", w.Frequency},
		{"apparent_power", w.ApparentPower},
	}
	for _, r := range required {
		if r.value == nil {
			return nil, missingField(r.field)
		}
	}

	return models.PowerSample{
		Timestamp:     timestampText(w.Timestamp),
		Voltage:       *w.Voltage,
		Current:       *w.Current,
		Power:         *w.Power,
		ApparentPower: *w.ApparentPower,
		ReactivePower: w.ReactivePower,
		PowerFactor:   *w.PowerFactor,
		Frequency:     *w.Frequency,
		Units:         w.Units,
		ReceivedAt:    receivedAt,
	}, nil
}

type thermalWire struct {
	Timestamp   json.RawMessage `json:"timestamp"`
	Temperature *float64        `json:"temperature"`
	Unit        string          `json:"unit"`
	Location    string          `json:"location"`
}

func decodeThermal(raw []byte, receivedAt time.Time) (models.Sample, error) {
	var w thermalWire
	if err := unmarshal(raw, &w); err != nil {
		return nil, err
	}
	if w.Temperature == nil {
		return nil, missingField("temperature")
	}

	return models.ThermalSample{
		Timestamp:   timestampText(w.Timestamp),
		Temperature: *w.Temperature,
		Unit:        w.Unit,
		Location:    w.Location,
		ReceivedAt:  receivedAt,
	}, nil
}

type faultWire struct {
	Timestamp      json.RawMessage    `json:"timestamp"`
	Model          string             `json:"model"`
	Classes        int                `json:"classes"`
	PredictedClass *string            `json:"predicted_class"`
	Confidence     *float64           `json:"confidence"`
	Probabilities  map[string]float64 `json:"probabilities"`
	Threshold      *float64           `json:"threshold"`
}

func decodeFault(raw []byte, receivedAt time.Time) (models.Sample, error) {
	var w faultWire
	if err := unmarshal(raw, &w); err != nil {
		return nil, err
	}
	switch {
	case w.PredictedClass == nil:
		return nil, missingField("predicted_class")
	case w.Confidence == nil:
		return nil, missingField("confidence")
	case w.Probabilities == nil:
		return nil, missingField("probabilities")
	}

	return models.FaultPrediction{
		Timestamp:      timestampText(w.Timestamp),
		Model:          w.Model,
		Classes:        w.Classes,
		PredictedClass: *w.PredictedClass,
		Confidence:     *w.Confidence,
		Probabilities:  w.Probabilities,
		Threshold:      w.Threshold,
		ReceivedAt:     receivedAt,
	}, nil
}

type statusWire struct {
	Timestamp    json.RawMessage `json:"timestamp"`
	Status       string          `json:"status"`
	Running      *bool           `json:"running"`
	RPM          *float64        `json:"rpm"`
	CurrentFault *string         `json:"current_fault"`
}

func decodeStatus(raw []byte, receivedAt time.Time) (models.Sample, error) {
	var w statusWire
	if err := unmarshal(raw, &w); err != nil {
		return nil, err
	}
	switch {
	case w.Running == nil:
		return nil, missingField("running")
	case w.RPM == nil:
		return nil, missingField("rpm")
	case w.CurrentFault == nil:
		return nil, missingField("current_fault")
	}

	return models.MotorStatus{
		Timestamp:    timestampText(w.Timestamp),
		Status:       w.Status,
		Running:      *w.Running,
		RPM:          *w.RPM,
		CurrentFault: *w.CurrentFault,
		ReceivedAt:   receivedAt,
	}, nil
}
