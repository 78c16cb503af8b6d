package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	trainingdomain "github.com/smallbiznis/labdesk/internal/training/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() trainingdomain.Repository {
	return &repo{}
}

func (r *repo) InsertTrigger(ctx context.Context, db *gorm.DB, trigger *trainingdomain.QuizTrigger) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(trigger).Error
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, now time.Time) ([]trainingdomain.QuizTrigger, error) {
	var triggers []trainingdomain.QuizTrigger
	err := db.WithContext(ctx).
		Where("fire_at <= ?", now).
		Order("fire_at ASC, id ASC").
		Find(&triggers).Error
	if err != nil {
		return nil, err
	}
	return triggers, nil
}

func (r *repo) ListTriggers(ctx context.Context, db *gorm.DB) ([]trainingdomain.QuizTrigger, error) {
	var triggers []trainingdomain.QuizTrigger
	if err := db.WithContext(ctx).Order("fire_at ASC, id ASC").Find(&triggers).Error; err != nil {
		return nil, err
	}
	return triggers, nil
}

func (r *repo) DeleteByEvent(ctx context.Context, db *gorm.DB, eventID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM training_quiz_triggers WHERE event_id = ?`,
		eventID,
	).Error
}
