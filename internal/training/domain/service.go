package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertTrigger is a no-op when the event already has a trigger.
	InsertTrigger(ctx context.Context, db *gorm.DB, trigger *QuizTrigger) error
	ListDue(ctx context.Context, db *gorm.DB, now time.Time) ([]QuizTrigger, error)
	ListTriggers(ctx context.Context, db *gorm.DB) ([]QuizTrigger, error)
	DeleteByEvent(ctx context.Context, db *gorm.DB, eventID snowflake.ID) error
}

type Service interface {
	// AddToTrainingEvent invites the requester to the training session they picked and
	// schedules the group quiz for the session's end.
	AddToTrainingEvent(ctx context.Context, req Request) (AddResult, error)
	// SendGroupQuiz mails the quiz to every guest of the first training event on day.
	SendGroupQuiz(ctx context.Context, day time.Time) (GroupQuizReport, error)
	// FireDueTriggers runs the group quiz for every trigger whose time has passed.
	FireDueTriggers(ctx context.Context) (int, error)
	// UpcomingSessions lists session choices from tomorrow through UpcomingMonths ahead.
	UpcomingSessions(ctx context.Context) ([]string, error)
	Triggers(ctx context.Context) ([]QuizTrigger, error)
}

var ErrInvalidSession = errors.New("invalid_training_session")
