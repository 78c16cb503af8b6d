package domain

import (
	"context"

	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	usagelogdomain "github.com/smallbiznis/labdesk/internal/usagelog/domain"
)

// Column headers of the Active Users sheet. The first column is the match key for reconciliation.
const (
	ColumnUser  = "First Name Last Name"
	ColumnGroup = "Group"
	ColumnDate  = "Date"
	ColumnTime  = "Time"
	ColumnTool  = "Tool"
	ColumnUse   = "Use"
)

var Headers = []string{ColumnUser, ColumnGroup, ColumnDate, ColumnTime, ColumnTool, ColumnUse}

var HeaderFormats = []string{
	sheetdomain.FormatText, sheetdomain.FormatText, sheetdomain.FormatText,
	sheetdomain.FormatText, sheetdomain.FormatText, sheetdomain.FormatText,
}

var BodyFormats = []string{
	sheetdomain.FormatText, sheetdomain.FormatText, sheetdomain.FormatDate,
	sheetdomain.FormatTime, sheetdomain.FormatText, sheetdomain.FormatDecimal5,
}

// Row is the projection of one user's latest activity.
type Row struct {
	UserName string `json:"user_name"`
	Group    string `json:"group"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Tool     string `json:"tool"`
	Use      string `json:"use"`
}

func (r Row) Cells() []string {
	return []string{r.UserName, r.Group, r.Date, r.Time, r.Tool, r.Use}
}

func FromRecord(rec usagelogdomain.UsageRecord) Row {
	return Row{
		UserName: rec.UserName,
		Group:    rec.Group,
		Date:     rec.Date,
		Time:     rec.Time,
		Tool:     rec.Tool,
		Use:      rec.UsageValue,
	}
}

type RefreshResult struct {
	Months []string             `json:"months"`
	Users  int                  `json:"users"`
	Stats  usagelogdomain.Stats `json:"stats"`
}

type Service interface {
	// Materialize replaces the Active Users sheet with one sorted row per user.
	Materialize(ctx context.Context, latest usagelogdomain.Latest) error
	// Refresh aggregates the active period's usage logs and materializes the result.
	Refresh(ctx context.Context) (RefreshResult, error)
	// Names returns the user names currently in the Active Users sheet.
	Names(ctx context.Context) (map[string]struct{}, error)
}
