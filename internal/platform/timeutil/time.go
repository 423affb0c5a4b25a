// Package timeutil formats API timestamps consistently across JSON and CBOR.
package timeutil

import (
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/fxamacker/cbor/v2"
)

// RFC3339Millis is RFC 3339 UTC with fixed millisecond precision, used for API timestamps.
const RFC3339Millis = "2006-01-02T15:04:05.000Z"

// RFC3339Micros is RFC 3339 UTC with fixed microsecond precision, used for log timestamps.
const RFC3339Micros = "2006-01-02T15:04:05.000000Z"

// cborNull is the single-byte CBOR encoding of null.
const cborNull = 0xf6

// Time wraps time.Time so API output always uses RFC3339Millis in UTC.
// JSON encodes it as a string; CBOR as a tag 0 date/time string.
//
// Decoding null preserves the existing value, like time.Time.
type Time struct {
	time.Time
}

// NewTime creates a Time from a standard time.Time.
func NewTime(t time.Time) Time {
	return Time{Time: t}
}

// String returns the RFC3339Millis form.
func (t Time) String() string {
	return t.UTC().Format(RFC3339Millis)
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler, accepting RFC 3339 variants.
func (t *Time) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (t Time) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{Number: 0, Content: t.String()})
}

// UnmarshalCBOR implements cbor.Unmarshaler. Tagged and untagged date/time
// strings are accepted.
func (t *Time) UnmarshalCBOR(data []byte) error {
	if len(data) == 1 && data[0] == cborNull {
		return nil
	}
	var parsed time.Time
	if err := cbor.Unmarshal(data, &parsed); err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Schema describes Time as an OpenAPI date-time string.
func (Time) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type:     huma.TypeString,
		Format:   "date-time",
		Examples: []any{"2024-01-15T10:30:00.000Z"},
	}
}
