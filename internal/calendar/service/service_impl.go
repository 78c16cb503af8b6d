package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	calendardomain "github.com/smallbiznis/labdesk/internal/calendar/domain"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	GenID  *snowflake.Node
	Repo   calendardomain.Repository
}

type Service struct {
	calendarID string
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	genID      *snowflake.Node
	repo       calendardomain.Repository
}

func New(p Params) calendardomain.Service {
	return &Service{
		calendarID: strings.TrimSpace(p.Config.Calendar.ID),
		db:         p.DB,
		log:        p.Log.Named("calendar.service"),
		clock:      p.Clock,
		genID:      p.GenID,
		repo:       p.Repo,
	}
}

func (s *Service) ListEvents(ctx context.Context, window calendardomain.Window, title string) ([]calendardomain.Event, error) {
	if !window.End.After(window.Start) {
		return nil, calendardomain.ErrInvalidWindow
	}
	events, err := s.repo.List(ctx, s.db, s.calendarID, calendardomain.Window{
		Start: window.Start.UTC(),
		End:   window.End.UTC(),
	})
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return events, nil
	}
	out := make([]calendardomain.Event, 0, len(events))
	for _, e := range events {
		if e.Title == title {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*calendardomain.Event, error) {
	event, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, calendardomain.ErrEventNotFound
	}
	return event, nil
}

func (s *Service) Create(ctx context.Context, req calendardomain.CreateEventRequest) (*calendardomain.Event, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || !req.End.After(req.Start) {
		return nil, calendardomain.ErrInvalidEvent
	}
	calendarID := strings.TrimSpace(req.CalendarID)
	if calendarID == "" {
		calendarID = s.calendarID
	}
	attendees, err := normalizeAttendees(req.Attendees)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	event := &calendardomain.Event{
		ID:              s.genID.Generate(),
		CalendarID:      calendarID,
		Title:           title,
		Description:     req.Description,
		Start:           req.Start.UTC(),
		End:             req.End.UTC(),
		Color:           req.Color,
		ReminderMinutes: req.ReminderMinutes,
		Attendees:       attendees,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, s.db, event); err != nil {
		return nil, err
	}
	s.log.Info("calendar event created",
		zap.String("event_id", event.ID.String()),
		zap.String("title", event.Title),
		zap.Time("start", event.Start),
	)
	return event, nil
}

func (s *Service) SetAttendees(ctx context.Context, id snowflake.ID, attendees []calendardomain.Attendee) (*calendardomain.Event, error) {
	normalized, err := normalizeAttendees(attendees)
	if err != nil {
		return nil, err
	}

	var updated *calendardomain.Event
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if event == nil {
			return calendardomain.ErrEventNotFound
		}
		event.Attendees = normalized
		event.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.UpdateAttendees(ctx, tx, event); err != nil {
			return err
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) AddGuest(ctx context.Context, id snowflake.ID, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, calendardomain.ErrInvalidGuest
	}

	added := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if event == nil {
			return calendardomain.ErrEventNotFound
		}
		if event.HasGuest(email) {
			return nil
		}
		event.Attendees = append(event.Attendees, calendardomain.Attendee{
			Email:  email,
			Status: calendardomain.StatusInvited,
		})
		event.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.UpdateAttendees(ctx, tx, event); err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if added {
		s.log.Info("guest added", zap.String("event_id", id.String()), zap.String("email", email))
	}
	return added, nil
}

func (s *Service) SetGuestStatus(ctx context.Context, id snowflake.ID, email, status string) error {
	if !validStatus(status) {
		return fmt.Errorf("%w: %q", calendardomain.ErrInvalidStatus, status)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if event == nil {
			return calendardomain.ErrEventNotFound
		}
		found := false
		for i := range event.Attendees {
			if strings.EqualFold(event.Attendees[i].Email, strings.TrimSpace(email)) {
				event.Attendees[i].Status = status
				found = true
			}
		}
		if !found {
			return calendardomain.ErrGuestNotFound
		}
		event.UpdatedAt = s.clock.Now().UTC()
		return s.repo.UpdateAttendees(ctx, tx, event)
	})
}

func normalizeAttendees(in []calendardomain.Attendee) ([]calendardomain.Attendee, error) {
	out := make([]calendardomain.Attendee, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, a := range in {
		email := strings.TrimSpace(a.Email)
		if email == "" {
			return nil, calendardomain.ErrInvalidGuest
		}
		key := strings.ToLower(email)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		status := a.Status
		if status == "" {
			status = calendardomain.StatusInvited
		}
		if !validStatus(status) {
			return nil, fmt.Errorf("%w: %q", calendardomain.ErrInvalidStatus, status)
		}
		out = append(out, calendardomain.Attendee{Email: email, Status: status})
	}
	return out, nil
}

func validStatus(status string) bool {
	switch status {
	case calendardomain.StatusInvited, calendardomain.StatusAccepted,
		calendardomain.StatusTentative, calendardomain.StatusDeclined:
		return true
	}
	return false
}
