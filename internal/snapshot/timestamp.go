package snapshot

import (
	"bytes"
	"encoding/json"
	"time"
)

// layouts accepted when decoding timestamps. Values without an offset are UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Timestamp is an instant decoded leniently from the pipeline export.
// null, empty and unparseable values decode to the zero time.
type Timestamp struct {
	time.Time
}

// At wraps t as a Timestamp in UTC
func At(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{Time: t.UTC()}
}

// ParseTimestamp parses s with the accepted layouts
func ParseTimestamp(s string) (Timestamp, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t.UTC()}, true
		}
	}
	return Timestamp{}, false
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, _ := ParseTimestamp(s)
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// DateString formats the timestamp as a calendar day
func (t Timestamp) DateString() string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// Date is a calendar day encoded as YYYY-MM-DD
type Date struct {
	Timestamp
}

// DateOf truncates t to its UTC calendar day
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.UTC().Date()
	return Date{Timestamp{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.DateString())
}
