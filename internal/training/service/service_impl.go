package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	calendardomain "github.com/smallbiznis/labdesk/internal/calendar/domain"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	quizdomain "github.com/smallbiznis/labdesk/internal/quiz/domain"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	trainingdomain "github.com/smallbiznis/labdesk/internal/training/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config   config.Config
	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Repo     trainingdomain.Repository
	Calendar calendardomain.Service
	Sheets   sheetdomain.Service
	Quiz     quizdomain.Service
}

type Service struct {
	title string
	sheet string
	loc   *time.Location

	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	repo     trainingdomain.Repository
	calendar calendardomain.Service
	sheets   sheetdomain.Service
	quiz     quizdomain.Service
}

func New(p Params) trainingdomain.Service {
	return &Service{
		title:    p.Config.Calendar.TrainingTitle,
		sheet:    p.Config.Sheets.TrainingRequests,
		loc:      p.Config.Calendar.Location(),
		db:       p.DB,
		log:      p.Log.Named("training.service"),
		clock:    p.Clock,
		genID:    p.GenID,
		repo:     p.Repo,
		calendar: p.Calendar,
		sheets:   p.Sheets,
		quiz:     p.Quiz,
	}
}

func (s *Service) AddToTrainingEvent(ctx context.Context, req trainingdomain.Request) (trainingdomain.AddResult, error) {
	session, err := trainingdomain.ParseSession(req.Session, s.loc)
	if err != nil {
		return trainingdomain.AddResult{}, err
	}

	events, err := s.calendar.ListEvents(ctx, calendardomain.Window{Start: session.Start, End: session.End}, s.title)
	if err != nil {
		return trainingdomain.AddResult{}, err
	}
	if len(events) == 0 {
		s.log.Warn("training event not found",
			zap.String("title", s.title),
			zap.Time("start", session.Start),
			zap.Time("end", session.End),
		)
		return trainingdomain.AddResult{}, fmt.Errorf("%w: %s", calendardomain.ErrEventNotFound, s.title)
	}
	event := events[0]
	result := trainingdomain.AddResult{EventID: event.ID}

	added, err := s.calendar.AddGuest(ctx, event.ID, req.Email)
	if err != nil {
		return result, fmt.Errorf("add guest to training event: %w", err)
	}
	if !added {
		s.log.Info("already a training guest", zap.String("email", req.Email))
		return result, nil
	}
	result.Added = true

	if err := s.repo.InsertTrigger(ctx, s.db, &trainingdomain.QuizTrigger{
		ID:        s.genID.Generate(),
		EventID:   event.ID,
		FireAt:    event.End.UTC(),
		CreatedAt: s.clock.Now().UTC(),
	}); err != nil {
		return result, fmt.Errorf("schedule quiz trigger: %w", err)
	}
	return result, nil
}

func (s *Service) SendGroupQuiz(ctx context.Context, day time.Time) (trainingdomain.GroupQuizReport, error) {
	day = day.In(s.loc)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	events, err := s.calendar.ListEvents(ctx, calendardomain.Window{Start: start, End: start.AddDate(0, 0, 1)}, s.title)
	if err != nil {
		return trainingdomain.GroupQuizReport{}, err
	}
	if len(events) == 0 {
		s.log.Info("no training events found", zap.String("title", s.title), zap.Time("day", start))
		return trainingdomain.GroupQuizReport{}, nil
	}
	return s.sendForEvent(ctx, events[0])
}

func (s *Service) FireDueTriggers(ctx context.Context) (int, error) {
	due, err := s.repo.ListDue(ctx, s.db, s.clock.Now().UTC())
	if err != nil {
		return 0, err
	}

	fired := 0
	var errs []error
	for _, trigger := range due {
		event, err := s.calendar.Get(ctx, trigger.EventID)
		if errors.Is(err, calendardomain.ErrEventNotFound) {
			s.log.Warn("quiz trigger points at a missing event, dropping it", zap.String("event_id", trigger.EventID.String()))
			if err := s.repo.DeleteByEvent(ctx, s.db, trigger.EventID); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := s.sendForEvent(ctx, *event); err != nil {
			errs = append(errs, fmt.Errorf("event %s: %w", event.ID, err))
			continue
		}
		fired++
	}
	return fired, errors.Join(errs...)
}

func (s *Service) UpcomingSessions(ctx context.Context) ([]string, error) {
	start := s.clock.Now().In(s.loc).AddDate(0, 0, 1)
	end := start.AddDate(0, trainingdomain.UpcomingMonths, 0)
	events, err := s.calendar.ListEvents(ctx, calendardomain.Window{Start: start, End: end}, s.title)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, trainingdomain.FormatSession(e.Start, e.End, s.loc))
	}
	return out, nil
}

func (s *Service) Triggers(ctx context.Context) ([]trainingdomain.QuizTrigger, error) {
	return s.repo.ListTriggers(ctx, s.db)
}

// sendForEvent mails every guest who has not declined, then drops the event's trigger.
func (s *Service) sendForEvent(ctx context.Context, event calendardomain.Event) (trainingdomain.GroupQuizReport, error) {
	report := trainingdomain.GroupQuizReport{EventID: event.ID}

	students, err := s.students(ctx)
	if err != nil {
		return report, err
	}

	for _, guest := range event.Attendees {
		if guest.Status == calendardomain.StatusDeclined {
			s.log.Info("training quiz not sent, invite declined", zap.String("email", guest.Email))
			report.Skipped = append(report.Skipped, guest.Email)
			continue
		}
		student, ok := students[strings.ToLower(guest.Email)]
		if !ok {
			s.log.Warn("training guest has no request on file", zap.String("email", guest.Email))
			report.Failed = append(report.Failed, guest.Email)
			continue
		}
		student.Email = guest.Email
		if err := s.quiz.SendQuiz(ctx, student); err != nil {
			s.log.Warn("training quiz not sent", zap.String("email", guest.Email), zap.Error(err))
			report.Failed = append(report.Failed, guest.Email)
			continue
		}
		report.Sent++
	}

	if err := s.repo.DeleteByEvent(ctx, s.db, event.ID); err != nil {
		return report, fmt.Errorf("drop quiz trigger: %w", err)
	}
	s.log.Info("training quiz sent",
		zap.String("event_id", event.ID.String()),
		zap.Int("sent", report.Sent),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// students indexes Safety Training Requests by lower-cased email. Later rows win.
func (s *Service) students(ctx context.Context) (map[string]quizdomain.Student, error) {
	table, err := s.sheets.GetTable(ctx, s.sheet)
	if errors.Is(err, sheetdomain.ErrTableNotFound) {
		return map[string]quizdomain.Student{}, nil
	}
	if err != nil {
		return nil, err
	}
	idx := table.Index()
	out := make(map[string]quizdomain.Student, len(table.Rows))
	for _, row := range table.Rows {
		student := quizdomain.StudentFromRow(idx, row)
		if student.Email == "" {
			continue
		}
		out[strings.ToLower(student.Email)] = student
	}
	return out, nil
}
