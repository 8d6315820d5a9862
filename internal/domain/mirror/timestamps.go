package mirror

import (
	"strings"
	"time"
)

// TimestampLayout is the canonical stored form: UTC, second precision, "Z" suffix.
const TimestampLayout = "2006-01-02T15:04:05Z"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp accepts RFC 3339 and the common naive variants. Values without a zone
// are taken as UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, Validationf("timestamp is empty")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, Validationf("unrecognized timestamp %q", raw)
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimestampLayout)
}

func NormalizeTimestamp(raw string) (string, error) {
	t, err := ParseTimestamp(raw)
	if err != nil {
		return "", err
	}
	return FormatTimestamp(t), nil
}

// NormalizeOptionalTimestamp keeps nil and blank values absent.
func NormalizeOptionalTimestamp(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	normalized, err := NormalizeTimestamp(*raw)
	if err != nil {
		return nil, err
	}
	return &normalized, nil
}

// SameTimestamp compares two timestamps by their canonical string form. Unparseable
// input falls back to trimmed raw equality so garbage never reads as "unchanged"
// against a valid value.
func SameTimestamp(a string, b string) bool {
	na, errA := NormalizeTimestamp(a)
	nb, errB := NormalizeTimestamp(b)
	if errA != nil || errB != nil {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return na == nb
}
