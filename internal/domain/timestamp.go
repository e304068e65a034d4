package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayout matches the ISO-8601 form the message log has always been
// stored in: UTC, millisecond precision, trailing Z.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp is a millisecond-precision UTC point in time with a stable text
// encoding. Values built through NewTimestamp survive EncodeTimestamp and
// ParseTimestamp unchanged.
type Timestamp struct {
	t time.Time
}

// NewTimestamp truncates t to milliseconds and normalizes it to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: time.UnixMilli(t.UnixMilli()).UTC()}
}

// TimestampFromMillis builds a Timestamp from Unix milliseconds.
func TimestampFromMillis(ms int64) Timestamp {
	return Timestamp{t: time.UnixMilli(ms).UTC()}
}

func (ts Timestamp) Time() time.Time {
	return ts.t
}

func (ts Timestamp) UnixMilli() int64 {
	return ts.t.UnixMilli()
}

func (ts Timestamp) IsZero() bool {
	return ts.t.IsZero()
}

func (ts Timestamp) Equal(other Timestamp) bool {
	return ts.t.Equal(other.t)
}

func (ts Timestamp) Before(other Timestamp) bool {
	return ts.t.Before(other.t)
}

func (ts Timestamp) String() string {
	return EncodeTimestamp(ts)
}

// EncodeTimestamp renders ts in the persisted text form.
func EncodeTimestamp(ts Timestamp) string {
	return ts.t.UTC().Format(timestampLayout)
}

// ParseTimestamp accepts any RFC 3339 value and normalizes it the same way
// NewTimestamp does.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("domain: parse timestamp %q: %w", s, err)
	}
	return NewTimestamp(t), nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(EncodeTimestamp(ts))
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("domain: decode timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}
