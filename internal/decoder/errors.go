package decoder

import (
	"errors"
	"fmt"

	"github.com/sarthwa8/digital-twin-dashboard/internal/constants"
)

// Reason classifies why a payload was rejected.
type Reason string

const (
	// ReasonMalformed means the payload is not valid JSON.
	ReasonMalformed Reason = "malformed"
	// ReasonSchema means the JSON does not carry the fields the channel needs.
	ReasonSchema Reason = "schema"
)

var (
	ErrMalformed      = errors.New("malformed payload")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrUnknownChannel = errors.New("no decoder for channel")

	errRequired = errors.New("required field missing")
)

// DecodeError is returned for every rejected payload.
type DecodeError struct {
	Channel constants.ChannelName
	Reason  Reason
	Field   string
	Err     error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode %s payload: %s", e.Channel, e.Reason)
	if e.Field != "" {
		msg += fmt.Sprintf(" (field %q)", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is lets callers match on ErrMalformed / ErrSchemaMismatch with errors.Is.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrMalformed:
		return e.Reason == ReasonMalformed
	case ErrSchemaMismatch:
		return e.Reason == ReasonSchema
	}
	return false
}

// missingField reports an absent or null required field. The channel is
// filled in by PayloadDecoder.Decode.
func missingField(field string) error {
	return &DecodeError{
		Reason: ReasonSchema,
		Field:  field,
		Err:    errRequired,
	}
}
