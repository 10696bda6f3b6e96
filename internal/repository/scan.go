package repository

import (
	"fmt"
	"time"
)

// sqlite hands timestamps back as text in whichever format wrote them
var timeFormats = []string{
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// nullTime scans a nullable timestamp from either driver.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (t *nullTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = x, true
		return nil
	case int64:
		t.Time, t.Valid = time.Unix(x, 0).UTC(), true
		return nil
	case string:
		return t.parse(x)
	case []byte:
		return t.parse(string(x))
	}
	return fmt.Errorf("scan time: unsupported type %T", v)
}

func (t *nullTime) parse(s string) error {
	for _, layout := range timeFormats {
		if ts, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = ts, true
			return nil
		}
	}
	return fmt.Errorf("scan time: unrecognized format %q", s)
}

func (t nullTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	ts := t.Time
	return &ts
}

// now returns the current UTC time at microsecond precision, which both
// Postgres and the sqlite text format round-trip exactly.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
