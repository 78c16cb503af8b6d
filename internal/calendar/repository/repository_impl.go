package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	calendardomain "github.com/smallbiznis/labdesk/internal/calendar/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() calendardomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *calendardomain.Event) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*calendardomain.Event, error) {
	var events []calendardomain.Event
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&events).Error
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, calendarID string, window calendardomain.Window) ([]calendardomain.Event, error) {
	var events []calendardomain.Event
	err := db.WithContext(ctx).
		Where("calendar_id = ? AND starts_at < ? AND ends_at > ?", calendarID, window.End, window.Start).
		Order("starts_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) UpdateAttendees(ctx context.Context, db *gorm.DB, event *calendardomain.Event) error {
	return db.WithContext(ctx).Model(&calendardomain.Event{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"attendees":  event.Attendees,
			"updated_at": event.UpdatedAt,
		}).Error
}
