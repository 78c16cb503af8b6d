package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	activeuserdomain "github.com/smallbiznis/labdesk/internal/activeuser/domain"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/lock"
	"github.com/smallbiznis/labdesk/internal/observability/metrics"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	usagelogdomain "github.com/smallbiznis/labdesk/internal/usagelog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config  config.Config
	Policy  *config.PolicyHolder
	Log     *zap.Logger
	Clock   clock.Clock
	Locker  lock.Locker
	Sheets  sheetdomain.Service
	Usage   usagelogdomain.Service
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	sheet   string
	policy  *config.PolicyHolder
	log     *zap.Logger
	clock   clock.Clock
	locker  lock.Locker
	sheets  sheetdomain.Service
	usage   usagelogdomain.Service
	metrics *metrics.Metrics
}

func New(p Params) activeuserdomain.Service {
	return &Service{
		sheet:   p.Config.Sheets.ActiveUsers,
		policy:  p.Policy,
		log:     p.Log.Named("activeuser.service"),
		clock:   p.Clock,
		locker:  p.Locker,
		sheets:  p.Sheets,
		usage:   p.Usage,
		metrics: p.Metrics,
	}
}

func (s *Service) Materialize(ctx context.Context, latest usagelogdomain.Latest) error {
	users := make([]string, 0, len(latest))
	for user := range latest {
		users = append(users, user)
	}
	sort.Strings(users)

	rows := make([][]string, 0, len(users))
	for _, user := range users {
		rows = append(rows, activeuserdomain.FromRecord(latest[user]).Cells())
	}

	release, err := s.locker.Acquire(ctx, "sheet:"+s.sheet)
	if err != nil {
		return err
	}
	defer release()

	if err := s.sheets.OverwriteTable(ctx, sheetdomain.OverwriteRequest{
		Name:          s.sheet,
		Headers:       activeuserdomain.Headers,
		Rows:          rows,
		HeaderFormats: activeuserdomain.HeaderFormats,
		BodyFormats:   activeuserdomain.BodyFormats,
		FrozenRows:    1,
	}); err != nil {
		return err
	}
	if err := s.sheets.SortByColumn(ctx, s.sheet, 0, true); err != nil {
		return err
	}

	s.metrics.RecordActiveUsers(ctx, len(rows))
	s.log.Info("active users materialized", zap.String("sheet", s.sheet), zap.Int("users", len(rows)))
	return nil
}

func (s *Service) Refresh(ctx context.Context) (activeuserdomain.RefreshResult, error) {
	months := usagelogdomain.MonthWindow(s.clock.Now(), s.policy.Get().ActivePeriodMonths)

	res, err := s.usage.Aggregate(ctx, months)
	if err != nil {
		return activeuserdomain.RefreshResult{}, err
	}
	if err := s.Materialize(ctx, res.Latest); err != nil {
		return activeuserdomain.RefreshResult{}, err
	}
	return activeuserdomain.RefreshResult{
		Months: months,
		Users:  len(res.Latest),
		Stats:  res.Stats,
	}, nil
}

// Names treats a missing sheet as an empty set so reconciliation can run before the first refresh.
func (s *Service) Names(ctx context.Context) (map[string]struct{}, error) {
	table, err := s.sheets.GetTable(ctx, s.sheet)
	if err != nil {
		if errors.Is(err, sheetdomain.ErrTableNotFound) {
			return map[string]struct{}{}, nil
		}
		return nil, err
	}
	idx := table.Index()
	out := make(map[string]struct{}, len(table.Rows))
	for _, row := range table.Rows {
		name := strings.TrimSpace(row.Get(idx, activeuserdomain.ColumnUser))
		if name != "" {
			out[name] = struct{}{}
		}
	}
	return out, nil
}
