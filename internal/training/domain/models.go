package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	quizdomain "github.com/smallbiznis/labdesk/internal/quiz/domain"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
)

const ColumnSession = "Training Session"

// Headers is the Safety Training Requests layout.
var Headers = []string{
	sheetdomain.ColumnTimestamp,
	sheetdomain.ColumnEmail,
	sheetdomain.ColumnEID,
	sheetdomain.ColumnFirstName,
	sheetdomain.ColumnLastName,
	sheetdomain.ColumnPhone,
	ColumnSession,
}

// UpcomingMonths is how far ahead session choices are offered.
const UpcomingMonths = 2

type Session struct {
	Start time.Time
	End   time.Time
}

var sessionParts = regexp.MustCompile(`[0-9]{4}-[0-9]{2}-[0-9]{2}|[0-9]{2}:[0-9]{2}`)

// ParseSession reads "YYYY-MM-DD | hh:mm to hh:mm" in loc.
func ParseSession(value string, loc *time.Location) (Session, error) {
	parts := sessionParts.FindAllString(value, -1)
	if len(parts) != 3 {
		return Session{}, fmt.Errorf("%w: %q", ErrInvalidSession, value)
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", parts[0]+" "+parts[1], loc)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %q", ErrInvalidSession, value)
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", parts[0]+" "+parts[2], loc)
	if err != nil || !end.After(start) {
		return Session{}, fmt.Errorf("%w: %q", ErrInvalidSession, value)
	}
	return Session{Start: start, End: end}, nil
}

// FormatSession is the inverse of ParseSession.
func FormatSession(start, end time.Time, loc *time.Location) string {
	start, end = start.In(loc), end.In(loc)
	return fmt.Sprintf("%s | %s to %s", start.Format("2006-01-02"), start.Format("15:04"), end.Format("15:04"))
}

// Request is one Safety Training Requests submission.
type Request struct {
	quizdomain.Student
	Phone   string `json:"phone"`
	Session string `json:"session"`
}

func RequestFromRow(idx sheetdomain.HeaderIndex, row sheetdomain.Row) Request {
	return Request{
		Student: quizdomain.StudentFromRow(idx, row),
		Phone:   strings.TrimSpace(row.Get(idx, sheetdomain.ColumnPhone)),
		Session: strings.TrimSpace(row.Get(idx, ColumnSession)),
	}
}

// QuizTrigger schedules the group quiz for a training event at its end.
type QuizTrigger struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	EventID   snowflake.ID `gorm:"not null;uniqueIndex"`
	FireAt    time.Time    `gorm:"not null;index"`
	CreatedAt time.Time    `gorm:"not null"`
}

func (QuizTrigger) TableName() string { return "training_quiz_triggers" }

type AddResult struct {
	EventID snowflake.ID `json:"event_id"`
	Added   bool         `json:"added"`
}

type GroupQuizReport struct {
	EventID snowflake.ID `json:"event_id,omitempty"`
	Sent    int          `json:"sent"`
	Skipped []string     `json:"skipped,omitempty"`
	Failed  []string     `json:"failed,omitempty"`
}
