package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reDate   = regexp.MustCompile(`\d{2}/\d{2}/\d{4}(?: \d{2}:\d{2}:\d{2})?`)
	reNumber = regexp.MustCompile(`\d+`)
	reMoney  = regexp.MustCompile(`[\d.,]*\d[\d.,]*`)
)

const (
	brDate     = "02/01/2006"
	brDateTime = "02/01/2006 15:04:05"
	isoDate    = "2006-01-02"
	isoDT      = "2006-01-02T15:04:05"
)

// Date finds the first dd/mm/yyyy date, optionally followed by hh:mm:ss,
// and returns it in ISO 8601. A match that is not a real calendar date is
// returned verbatim. No match yields nil.
func Date(raw string) *string {
	m := reDate.FindString(raw)
	if m == "" {
		return nil
	}
	layout, out := brDate, isoDate
	if len(m) > len(brDate) {
		layout, out = brDateTime, isoDT
	}
	t, err := time.Parse(layout, m)
	if err != nil {
		return &m
	}
	s := t.Format(out)
	return &s
}

// Number returns the first run of digits, leading zeros kept.
func Number(raw string) *string {
	m := reNumber.FindString(raw)
	if m == "" {
		return nil
	}
	return &m
}

// Text trims surrounding whitespace; blank text yields nil.
func Text(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	return &s
}

// Money reads a Brazilian-formatted amount such as "1.500,00". Dots are
// thousands separators and the comma is the decimal mark. Anything that
// cannot be read yields 0.
func Money(raw string) float64 {
	m := reMoney.FindString(raw)
	if m == "" {
		return 0
	}
	m = strings.TrimRight(m, ".,")
	m = strings.ReplaceAll(m, ".", "")
	m = strings.ReplaceAll(m, ",", ".")
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}
