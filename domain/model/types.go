package model

import (
	"encoding/json"
	"strings"
	"time"
)

// ISOLayout matches the millisecond UTC format the record stores already hold.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp is a time that travels as an ISO-8601 string. The zero value is
// written as an empty string and anything unparseable reads back as zero.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(ISOLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*t = Timestamp{}
		return nil
	}
	*t = ParseTimestamp(s)
	return nil
}

// ParseTimestamp accepts RFC3339 with or without fractional seconds. Values
// without a zone are read as UTC.
func ParseTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
		time.DateOnly,
	} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: parsed}
		}
	}
	return Timestamp{}
}

// FlexString decodes from a JSON string or number. Tabular stores hand back
// ids either way.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*f = ""
		return nil
	}
	*f = FlexString(raw)
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// FlexBool decodes a JSON bool or the strings "TRUE"/"true".
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		*f = false
		return nil
	}
	switch x := v.(type) {
	case bool:
		*f = FlexBool(x)
	case string:
		*f = FlexBool(strings.EqualFold(strings.TrimSpace(x), "true"))
	default:
		*f = false
	}
	return nil
}
