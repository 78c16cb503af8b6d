package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/labdesk/internal/input"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
)

const dateOnlyLayout = "2006-01-02"

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseDay reads a YYYY-MM-DD day in loc, defaulting to today.
func parseDay(value string, now time.Time, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	parsed, err := time.ParseInLocation(dateOnlyLayout, trimmed, loc)
	if err != nil {
		return time.Time{}, errors.New("invalid_date")
	}
	return parsed, nil
}

// parseSheetRows reads a row list below the header row. Upper bounds are checked by the sheet.
func parseSheetRows(text string) ([]int, error) {
	return input.ParseRowNumbers(text, input.Bounds{Min: sheetdomain.HeaderRow + 1})
}
