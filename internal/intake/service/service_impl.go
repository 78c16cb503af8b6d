package service

import (
	"context"
	"fmt"
	"strings"

	basketdomain "github.com/smallbiznis/labdesk/internal/basket/domain"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	intakedomain "github.com/smallbiznis/labdesk/internal/intake/domain"
	"github.com/smallbiznis/labdesk/internal/observability/metrics"
	quizdomain "github.com/smallbiznis/labdesk/internal/quiz/domain"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	trainingdomain "github.com/smallbiznis/labdesk/internal/training/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config       config.Config
	Log          *zap.Logger
	Clock        clock.Clock
	Sheets       sheetdomain.Service
	Training     trainingdomain.Service
	Quiz         quizdomain.Service
	Registration registrationdomain.Service
	Baskets      basketdomain.Service
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	log          *zap.Logger
	clock        clock.Clock
	sheets       sheetdomain.Service
	training     trainingdomain.Service
	quiz         quizdomain.Service
	registration registrationdomain.Service
	baskets      basketdomain.Service
	metrics      *metrics.Metrics
	forms        map[string]formRoute
}

// formRoute binds a form to its sheet and the fields it cannot do without.
type formRoute struct {
	sheet    string
	headers  []string
	required []string
	handle   func(ctx context.Context, idx sheetdomain.HeaderIndex, row sheetdomain.Row) (any, error)
}

func New(p Params) intakedomain.Service {
	s := &Service{
		log:          p.Log.Named("intake.service"),
		clock:        p.Clock,
		sheets:       p.Sheets,
		training:     p.Training,
		quiz:         p.Quiz,
		registration: p.Registration,
		baskets:      p.Baskets,
		metrics:      p.Metrics,
	}
	s.forms = map[string]formRoute{
		intakedomain.FormTraining: {
			sheet:    p.Config.Sheets.TrainingRequests,
			headers:  trainingdomain.Headers,
			required: []string{sheetdomain.ColumnEmail, trainingdomain.ColumnSession},
			handle:   s.handleTraining,
		},
		intakedomain.FormQuiz: {
			sheet:    p.Config.Sheets.Quiz,
			headers:  quizdomain.Headers,
			required: []string{sheetdomain.ColumnEmail, quizdomain.ColumnScore},
			handle:   s.handleQuiz,
		},
		intakedomain.FormRegistration: {
			sheet:    p.Config.Sheets.Registration,
			headers:  registrationdomain.Headers,
			required: []string{sheetdomain.ColumnEmail, sheetdomain.ColumnEID},
			handle:   s.handleRegistration,
		},
		intakedomain.FormLabAccess: {
			sheet:    p.Config.Sheets.LabAccess,
			headers:  registrationdomain.LabAccessHeaders,
			required: []string{sheetdomain.ColumnEmail, sheetdomain.ColumnEID},
			handle:   s.handleLabAccess,
		},
		intakedomain.FormBasket: {
			sheet:    p.Config.Sheets.BasketRegistration,
			headers:  basketdomain.RegistrationHeaders,
			required: []string{sheetdomain.ColumnEmail},
			handle:   s.handleBasket,
		},
	}
	return s
}

func (s *Service) Submit(ctx context.Context, form string, values map[string]string) (intakedomain.Result, error) {
	form = strings.ToLower(strings.TrimSpace(form))
	route, ok := s.forms[form]
	if !ok {
		return intakedomain.Result{}, fmt.Errorf("%w: %q", intakedomain.ErrUnknownForm, form)
	}

	record := make(map[string]string, len(values)+1)
	for k, v := range values {
		record[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	for _, field := range route.required {
		if record[field] == "" {
			return intakedomain.Result{}, fmt.Errorf("%w: %s", intakedomain.ErrMissingField, field)
		}
	}
	record[sheetdomain.ColumnTimestamp] = s.submittedAt(form, record[sheetdomain.ColumnTimestamp])

	if _, err := s.sheets.EnsureTable(ctx, route.sheet, route.headers); err != nil {
		return intakedomain.Result{}, err
	}
	number, err := s.sheets.AppendRecord(ctx, route.sheet, record)
	if err != nil {
		return intakedomain.Result{}, fmt.Errorf("record %s submission: %w", form, err)
	}
	result := intakedomain.Result{Form: form, Sheet: route.sheet, Row: number}

	table, err := s.sheets.GetTable(ctx, route.sheet)
	if err != nil {
		return result, err
	}
	row, ok := table.Row(number)
	if !ok {
		return result, fmt.Errorf("%w: %d", sheetdomain.ErrRowOutOfRange, number)
	}

	s.log.Info("form submission recorded", zap.String("form", form), zap.Int("row", number))
	outcome, err := route.handle(ctx, table.Index(), *row)
	result.Outcome = outcome
	if err != nil {
		s.metrics.RecordFormSubmission(ctx, form, "failed")
		s.log.Warn("form workflow failed", zap.String("form", form), zap.Int("row", number), zap.Error(err))
		return result, err
	}
	s.metrics.RecordFormSubmission(ctx, form, "processed")
	return result, nil
}

// submittedAt keeps a readable past timestamp from the form tool and
// falls back to now for anything else.
func (s *Service) submittedAt(form, raw string) string {
	now := s.clock.Now()
	if raw == "" {
		return sheetdomain.FormatTimestamp(now)
	}
	at, ok := sheetdomain.ParseTimestamp(raw, now.Location())
	if !ok || at.After(now) {
		s.log.Warn("submission timestamp replaced", zap.String("form", form), zap.String("timestamp", raw))
		return sheetdomain.FormatTimestamp(now)
	}
	return sheetdomain.FormatTimestamp(at)
}

func (s *Service) handleTraining(ctx context.Context, idx sheetdomain.HeaderIndex, row sheetdomain.Row) (any, error) {
	return s.training.AddToTrainingEvent(ctx, trainingdomain.RequestFromRow(idx, row))
}

func (s *Service) handleQuiz(ctx context.Context, idx sheetdomain.HeaderIndex, row sheetdomain.Row) (any, error) {
	return s.quiz.Process(ctx, quizdomain.SubmissionFromRow(idx, row))
}

func (s *Service) handleRegistration(ctx context.Context, idx sheetdomain.HeaderIndex, row sheetdomain.Row) (any, error) {
	return s.registration.ProcessRegistration(ctx, registrationdomain.RegistrantFromRow(idx, row))
}

func (s *Service) handleLabAccess(ctx context.Context, idx sheetdomain.HeaderIndex, row sheetdomain.Row) (any, error) {
	return s.registration.ProcessLabAccess(ctx, registrationdomain.LabAccessFromRow(idx, row))
}

func (s *Service) handleBasket(ctx context.Context, idx sheetdomain.HeaderIndex, row sheetdomain.Row) (any, error) {
	get := func(h string) string { return strings.TrimSpace(row.Get(idx, h)) }
	number := row.Number
	req := basketdomain.AssignRequest{
		EID:              get(sheetdomain.ColumnEID),
		FirstName:        get(sheetdomain.ColumnFirstName),
		LastName:         get(sheetdomain.ColumnLastName),
		Email:            get(sheetdomain.ColumnEmail),
		Phone:            get(sheetdomain.ColumnPhone),
		Zone:             get(sheetdomain.ColumnCleanroom),
		ExistingBasketID: get(sheetdomain.ColumnBasketID),
		RecordRow:        &number,
		Timestamp:        get(sheetdomain.ColumnTimestamp),
	}

	res, err := s.baskets.Assign(ctx, req)
	if err != nil {
		return res, err
	}
	if err := s.baskets.NotifyAssignment(ctx, req, res); err != nil {
		s.log.Warn("basket email not sent", zap.String("eid", req.EID), zap.Error(err))
	}
	return res, nil
}
