package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *Event) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Event, error)
	// List returns events of calendarID overlapping the window, ordered by start.
	List(ctx context.Context, db *gorm.DB, calendarID string, window Window) ([]Event, error)
	UpdateAttendees(ctx context.Context, db *gorm.DB, event *Event) error
}

type Service interface {
	// ListEvents returns events overlapping [start, end). A non-empty title must match exactly.
	ListEvents(ctx context.Context, window Window, title string) ([]Event, error)
	Get(ctx context.Context, id snowflake.ID) (*Event, error)
	Create(ctx context.Context, req CreateEventRequest) (*Event, error)
	SetAttendees(ctx context.Context, id snowflake.ID, attendees []Attendee) (*Event, error)
	// AddGuest invites email unless already a guest. It reports whether the list changed.
	AddGuest(ctx context.Context, id snowflake.ID, email string) (bool, error)
	SetGuestStatus(ctx context.Context, id snowflake.ID, email, status string) error
}

var (
	ErrEventNotFound = errors.New("event_not_found")
	ErrInvalidEvent  = errors.New("invalid_event")
	ErrInvalidGuest  = errors.New("invalid_guest")
	ErrGuestNotFound = errors.New("guest_not_found")
	ErrInvalidStatus = errors.New("invalid_guest_status")
	ErrInvalidWindow = errors.New("invalid_window")
)
