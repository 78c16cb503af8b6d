// Package seed prepares an empty workbook: every workflow sheet exists with its
// header row and the Basket Index lists the configured baskets.
package seed

import (
	"context"
	"errors"

	activeuserdomain "github.com/smallbiznis/labdesk/internal/activeuser/domain"
	basketdomain "github.com/smallbiznis/labdesk/internal/basket/domain"
	"github.com/smallbiznis/labdesk/internal/config"
	quizdomain "github.com/smallbiznis/labdesk/internal/quiz/domain"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	trainingdomain "github.com/smallbiznis/labdesk/internal/training/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config  config.Config
	Policy  *config.PolicyHolder
	Log     *zap.Logger
	Sheets  sheetdomain.Service
	Baskets basketdomain.Service
}

type Seeder struct {
	cfg     config.Config
	policy  *config.PolicyHolder
	log     *zap.Logger
	sheets  sheetdomain.Service
	baskets basketdomain.Service
}

// Report lists what a run created. Existing sheets are left untouched.
type Report struct {
	Created []string
	Baskets int
}

func New(p Params) *Seeder {
	return &Seeder{
		cfg:     p.Config,
		policy:  p.Policy,
		log:     p.Log.Named("seed"),
		sheets:  p.Sheets,
		baskets: p.Baskets,
	}
}

func (s *Seeder) layouts() []struct {
	name    string
	headers []string
} {
	names := s.cfg.Sheets
	return []struct {
		name    string
		headers []string
	}{
		{names.ActiveUsers, activeuserdomain.Headers},
		{names.BasketRegistration, basketdomain.RegistrationHeaders},
		{names.Registration, registrationdomain.Headers},
		{names.LabAccess, registrationdomain.LabAccessHeaders},
		{names.Quiz, quizdomain.Headers},
		{names.TrainingRequests, trainingdomain.Headers},
	}
}

// Run is idempotent. The Basket Index is only seeded while it has no rows.
func (s *Seeder) Run(ctx context.Context) (Report, error) {
	var report Report
	for _, layout := range s.layouts() {
		if layout.name == "" {
			continue
		}
		_, err := s.sheets.GetTable(ctx, layout.name)
		if err == nil {
			continue
		}
		if !errors.Is(err, sheetdomain.ErrTableNotFound) {
			return report, err
		}
		if _, err := s.sheets.EnsureTable(ctx, layout.name, layout.headers); err != nil {
			return report, err
		}
		report.Created = append(report.Created, layout.name)
	}

	added, err := s.baskets.Seed(ctx, s.policy.Get().Baskets)
	report.Baskets = added
	if err != nil {
		return report, err
	}
	if len(report.Created) > 0 {
		s.log.Info("sheets created", zap.Strings("sheets", report.Created))
	}
	return report, nil
}
