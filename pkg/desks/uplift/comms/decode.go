package comms

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedTelemetry is returned when a height notification cannot be
// interpreted. A height based on corrupt bytes is unsafe to act on, so the
// error always propagates instead of being coerced to a zero value.
var ErrMalformedTelemetry = errors.New("malformed height telemetry")

// HeightConverter turns the raw bytes of a height notification into a height
// in inches. The conversion must be deterministic and monotonic in the
// desk's travel.
type HeightConverter func(raw []byte) (float64, error)

// HeightSample is one decoded height reading paired with its arrival time.
type HeightSample struct {
	Inches     float64
	ObservedAt time.Time
}

// DecodeHeight runs the converter over a raw notification and stamps the
// result with the supplied time. Converter failures are wrapped in
// ErrMalformedTelemetry.
func DecodeHeight(convert HeightConverter, raw []byte, now time.Time) (HeightSample, error) {
	inches, err := convert(raw)
	if err != nil {
		return HeightSample{}, fmt.Errorf("%w: %v", ErrMalformedTelemetry, err)
	}
	return HeightSample{Inches: inches, ObservedAt: now}, nil
}

// ConvertRawHeight is the height conversion observed from current vendor
// firmware: a big-endian value in tenths of an inch at offset 5 of the
// notification. Desks running other firmware can substitute their own
// HeightConverter.
func ConvertRawHeight(raw []byte) (float64, error) {
	if len(raw) < 7 {
		return 0, fmt.Errorf("height frame too short: %d bytes", len(raw))
	}
	return float64(binary.BigEndian.Uint16(raw[5:7])) / 10, nil
}
