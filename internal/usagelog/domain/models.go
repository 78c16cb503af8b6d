package domain

import (
	"context"
	"errors"
	"time"
)

// UsageRecord is one parsed line of a tool-usage export.
type UsageRecord struct {
	Date       string `json:"date"`
	Time       string `json:"time"`
	UserName   string `json:"user_name"`
	Group      string `json:"group"`
	Tool       string `json:"tool"`
	UsageValue string `json:"usage_value"`
}

// Stamp is the comparable "date time" key; later exports sort greater.
func (r UsageRecord) Stamp() string {
	return r.Date + " " + r.Time
}

// Latest holds the most recent record per user across a scan window.
type Latest map[string]UsageRecord

type Stats struct {
	Months  int `json:"months"`
	Files   int `json:"files"`
	Rows    int `json:"rows"`
	Skipped int `json:"skipped"`
}

type Result struct {
	Latest Latest `json:"-"`
	Stats  Stats  `json:"stats"`
}

// LogFile is the raw content of one export file.
type LogFile struct {
	Name string
	Data []byte
}

// Source lists month folders ("YYYY-MM") and the export files in their inv sub-folder.
type Source interface {
	ListMonthFolders(ctx context.Context) ([]string, error)
	ListFiles(ctx context.Context, month string) ([]LogFile, error)
}

type Service interface {
	Aggregate(ctx context.Context, months []string) (Result, error)
}

// Export layout.
const (
	HeaderLines = 3
	FooterLines = 1
	FieldCount  = 6
	LogFolder   = "inv"
	MonthLayout = "2006-01"
)

var (
	ErrMonthNotFound     = errors.New("month_folder_not_found")
	ErrLogFolderNotFound = errors.New("log_folder_not_found")
	ErrInvalidMonth      = errors.New("invalid_month")
)

// MonthWindow names the n calendar months before now, most recent first.
// The current month is never included.
func MonthWindow(now time.Time, n int) []string {
	if n <= 0 {
		return nil
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, first.AddDate(0, -i, 0).Format(MonthLayout))
	}
	return out
}

func ValidMonth(month string) bool {
	_, err := time.Parse(MonthLayout, month)
	return err == nil
}
