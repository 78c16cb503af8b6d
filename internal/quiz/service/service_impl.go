package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/notification"
	"github.com/smallbiznis/labdesk/internal/observability/metrics"
	quizdomain "github.com/smallbiznis/labdesk/internal/quiz/domain"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Subject prefixes per template.
var subjects = map[string]string{
	notification.TemplateQuiz:       "Quiz",
	notification.TemplateQuizPassed: "Passed Quiz",
	notification.TemplateQuizFailed: "Failed Quiz",
}

type Params struct {
	fx.In

	Config   config.Config
	Policy   *config.PolicyHolder
	Log      *zap.Logger
	Sheets   sheetdomain.Service
	Notifier *notification.Notifier
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	labAccessSheet string
	trainingSheet  string
	forms          config.FormLinks

	policy   *config.PolicyHolder
	log      *zap.Logger
	sheets   sheetdomain.Service
	notifier *notification.Notifier
	metrics  *metrics.Metrics
}

func New(p Params) quizdomain.Service {
	return &Service{
		labAccessSheet: p.Config.Sheets.LabAccess,
		trainingSheet:  p.Config.Sheets.TrainingRequests,
		forms:          p.Config.Forms,
		policy:         p.Policy,
		log:            p.Log.Named("quiz.service"),
		sheets:         p.Sheets,
		notifier:       p.Notifier,
		metrics:        p.Metrics,
	}
}

func (s *Service) Grade(sub quizdomain.Submission) (quizdomain.Outcome, error) {
	points, err := quizdomain.ParseScore(sub.Score)
	if err != nil {
		return quizdomain.Outcome{}, err
	}
	policy := s.policy.Get()
	outcome := quizdomain.Outcome{
		Points:  points,
		Percent: quizdomain.Percent(points, policy.QuizTotalPoints),
		Passed:  quizdomain.Passed(points, policy.QuizTotalPoints, policy.QuizPassingScore),
	}
	outcome.Template = notification.TemplateQuizFailed
	if outcome.Passed {
		outcome.Template = notification.TemplateQuizPassed
	}
	return outcome, nil
}

func (s *Service) Process(ctx context.Context, sub quizdomain.Submission) (quizdomain.Outcome, error) {
	outcome, err := s.Grade(sub)
	if err != nil {
		s.log.Warn("quiz score unreadable", zap.String("eid", sub.EID), zap.String("score", sub.Score))
		return quizdomain.Outcome{}, err
	}
	s.metrics.RecordQuizResult(ctx, outcome.Passed)
	s.log.Info("quiz graded",
		zap.String("eid", sub.EID),
		zap.Int("percent", outcome.Percent),
		zap.Bool("passed", outcome.Passed),
	)

	url := s.quizURL(sub.Student)
	if outcome.Passed {
		url = config.ExpandURL(s.forms.Onboarding, map[string]string{
			"eid":        sub.EID,
			"email":      sub.Email,
			"first":      sub.FirstName,
			"last":       sub.LastName,
			"lab_access": s.NeedsLabAccess(ctx, sub.EID),
		})
	}

	if err := s.send(ctx, sub.Student, outcome.Template, url); err != nil {
		s.log.Warn("quiz result email not sent", zap.String("eid", sub.EID), zap.Error(err))
		return outcome, nil
	}
	outcome.Notified = true
	return outcome, nil
}

func (s *Service) SendQuiz(ctx context.Context, student quizdomain.Student) error {
	return s.send(ctx, student, notification.TemplateQuiz, s.quizURL(student))
}

func (s *Service) SendQuizRows(ctx context.Context, rows []int) (quizdomain.Report, error) {
	table, err := s.sheets.GetTable(ctx, s.trainingSheet)
	if err != nil {
		return quizdomain.Report{}, err
	}
	idx := table.Index()

	students := make([]quizdomain.Student, 0, len(rows))
	for _, n := range rows {
		row, ok := table.Row(n)
		if !ok {
			return quizdomain.Report{}, fmt.Errorf("%w: %d", sheetdomain.ErrRowOutOfRange, n)
		}
		students = append(students, quizdomain.StudentFromRow(idx, *row))
	}

	var report quizdomain.Report
	for _, student := range students {
		if err := s.SendQuiz(ctx, student); err != nil {
			report.Failed = append(report.Failed, student.Email)
			s.log.Warn("quiz email not sent", zap.String("email", student.Email), zap.Error(err))
			continue
		}
		report.Sent++
	}
	return report, nil
}

func (s *Service) NeedsLabAccess(ctx context.Context, eid string) string {
	table, err := s.sheets.GetTable(ctx, s.labAccessSheet)
	if err != nil {
		if !errors.Is(err, sheetdomain.ErrTableNotFound) {
			s.log.Warn("existing lab access lookup failed", zap.Error(err))
		}
		return "Yes"
	}
	eid = strings.TrimSpace(eid)
	if eid == "" {
		return "Yes"
	}
	if _, found := table.FindRow(sheetdomain.ColumnEID, eid); found {
		return "No"
	}
	return "Yes"
}

func (s *Service) quizURL(student quizdomain.Student) string {
	return config.ExpandURL(s.forms.Quiz, map[string]string{
		"eid":   student.EID,
		"first": student.FirstName,
		"last":  student.LastName,
	})
}

func (s *Service) send(ctx context.Context, student quizdomain.Student, template, url string) error {
	if strings.TrimSpace(student.Email) == "" {
		return fmt.Errorf("quiz email for %q: no address", student.EID)
	}
	return s.notifier.Send(ctx, notification.Notification{
		To:       []string{student.Email},
		Subject:  fmt.Sprintf("%s | Safety Training | %s", subjects[template], student.EID),
		Template: template,
		Data: map[string]string{
			"Name": student.Name(),
			"URL":  url,
		},
		Progress:   true,
		SenderName: notification.SenderTraining,
	})
}
