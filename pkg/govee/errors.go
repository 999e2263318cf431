package govee

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedPayload is returned when no registered model accepts a payload.
	ErrUnsupportedPayload = errors.New("unsupported payload")
	// ErrUnknownModel is returned when a model name is not registered.
	ErrUnknownModel = errors.New("unknown model")
	// ErrMalformedPayload is returned when a field window is out of range or not hex.
	ErrMalformedPayload = errors.New("malformed payload")
)

// UnsupportedPayloadError carries the rejected payload.
type UnsupportedPayloadError struct {
	Payload string
	Len     int
}

func (e *UnsupportedPayloadError) Error() string {
	return fmt.Sprintf("unsupported payload (len: %d): %s", e.Len, e.Payload)
}

func (e *UnsupportedPayloadError) Is(target error) bool {
	return target == ErrUnsupportedPayload
}
