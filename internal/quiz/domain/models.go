package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
)

const ColumnScore = "Score"

// Headers is the Quiz OH 102 layout.
var Headers = []string{
	sheetdomain.ColumnTimestamp,
	sheetdomain.ColumnEmail,
	ColumnScore,
	sheetdomain.ColumnEID,
	sheetdomain.ColumnFirstName,
	sheetdomain.ColumnLastName,
}

// Student identifies the recipient of a quiz email.
type Student struct {
	EID       string `json:"eid"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (s Student) Name() string {
	return sheetdomain.FullName(s.FirstName, s.LastName)
}

// StudentFromRow reads the identity columns shared by the quiz and training sheets.
func StudentFromRow(idx sheetdomain.HeaderIndex, row sheetdomain.Row) Student {
	get := func(h string) string { return strings.TrimSpace(row.Get(idx, h)) }
	return Student{
		EID:       get(sheetdomain.ColumnEID),
		FirstName: get(sheetdomain.ColumnFirstName),
		LastName:  get(sheetdomain.ColumnLastName),
		Email:     get(sheetdomain.ColumnEmail),
	}
}

type Submission struct {
	Student
	Score string `json:"score"`
}

func SubmissionFromRow(idx sheetdomain.HeaderIndex, row sheetdomain.Row) Submission {
	return Submission{
		Student: StudentFromRow(idx, row),
		Score:   strings.TrimSpace(row.Get(idx, ColumnScore)),
	}
}

type Outcome struct {
	Points   float64 `json:"points"`
	Percent  int     `json:"percent"`
	Passed   bool    `json:"passed"`
	Template string  `json:"template"`
	Notified bool    `json:"notified"`
}

// Report summarises a batch of quiz emails.
type Report struct {
	Sent   int      `json:"sent"`
	Failed []string `json:"failed,omitempty"`
}

// ParseScore reads "x/y" as x. A bare number is taken as the points.
func ParseScore(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrInvalidScore
	}
	if !strings.Contains(value, "/") {
		points, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidScore, value)
		}
		return points, nil
	}
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidScore, value)
	}
	points, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidScore, value)
	}
	return points, nil
}

// Percent rounds points/total to a whole percentage. A non-positive total scores zero.
func Percent(points, total float64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(points / total * 100))
}

func Passed(points, total float64, passing int) bool {
	return total > 0 && Percent(points, total) >= passing
}
