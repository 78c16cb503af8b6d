package domain

import (
	"strings"
	"time"
)

// Column names shared by the form-response sheets.
const (
	ColumnTimestamp = "Timestamp"
	ColumnEmail     = "Email Address"
	ColumnEID       = "UT EID"
	ColumnFirstName = "First Name"
	ColumnLastName  = "Last Name"
	ColumnPhone     = "Phone Number"
	ColumnCleanroom = "Cleanroom"
	ColumnBasketID  = "Basket ID"
)

// TimestampLayout is how submission timestamps are written to cells.
const TimestampLayout = "2006-01-02 15:04:05"

var timestampLayouts = []string{
	TimestampLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"1/2/2006 15:04:05",
	"2006-01-02",
}

// ParseTimestamp reads a timestamp cell written by this service or exported from a form tool.
func ParseTimestamp(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// FormatBool writes booleans the way spreadsheet exports do.
func FormatBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func ParseBool(value string) bool {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "TRUE", "YES", "1":
		return true
	}
	return false
}

// FullName joins first and last name the way usage logs spell users.
func FullName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
