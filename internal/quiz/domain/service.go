package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Process grades a submission and emails the result. Delivery failures are
	// logged and reflected in Outcome.Notified only.
	Process(ctx context.Context, sub Submission) (Outcome, error)
	Grade(sub Submission) (Outcome, error)
	// SendQuiz emails the quiz link to one student.
	SendQuiz(ctx context.Context, student Student) error
	// SendQuizRows emails the quiz to the students on the given Safety Training Requests rows.
	SendQuizRows(ctx context.Context, rows []int) (Report, error)
	// NeedsLabAccess reports "No" when eid already has a Lab Access row, otherwise "Yes".
	NeedsLabAccess(ctx context.Context, eid string) string
}

var ErrInvalidScore = errors.New("invalid_score")
