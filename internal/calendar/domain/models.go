package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Guest response states.
const (
	StatusInvited   = "invited"
	StatusAccepted  = "accepted"
	StatusTentative = "tentative"
	StatusDeclined  = "declined"
)

const (
	ColorDefault = ""
	ColorCyan    = "cyan"
	ColorGray    = "gray"
)

type Attendee struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}

type Event struct {
	ID              snowflake.ID                  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CalendarID      string                        `gorm:"type:text;not null;index:idx_calendar_events_window,priority:1" json:"calendar_id"`
	Title           string                        `gorm:"type:text;not null" json:"title"`
	Description     string                        `gorm:"type:text;not null;default:''" json:"description"`
	Start           time.Time                     `gorm:"column:starts_at;not null;index:idx_calendar_events_window,priority:2" json:"start"`
	End             time.Time                     `gorm:"column:ends_at;not null" json:"end"`
	Color           string                        `gorm:"type:text;not null;default:''" json:"color,omitempty"`
	ReminderMinutes int                           `gorm:"not null;default:0" json:"reminder_minutes,omitempty"`
	Attendees       datatypes.JSONSlice[Attendee] `gorm:"not null" json:"attendees"`
	CreatedAt       time.Time                     `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time                     `gorm:"not null" json:"updated_at"`
}

func (Event) TableName() string { return "calendar_events" }

// HasGuest matches addresses case-insensitively.
func (e Event) HasGuest(email string) bool {
	email = strings.TrimSpace(email)
	for _, a := range e.Attendees {
		if strings.EqualFold(a.Email, email) {
			return true
		}
	}
	return false
}

type CreateEventRequest struct {
	CalendarID      string
	Title           string
	Description     string
	Start           time.Time
	End             time.Time
	Color           string
	ReminderMinutes int
	Attendees       []Attendee
}

// Window is a half-open [Start, End) query range.
type Window struct {
	Start time.Time
	End   time.Time
}
