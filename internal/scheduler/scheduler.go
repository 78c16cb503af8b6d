package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	activeuserdomain "github.com/smallbiznis/labdesk/internal/activeuser/domain"
	auditdomain "github.com/smallbiznis/labdesk/internal/audit/domain"
	"github.com/smallbiznis/labdesk/internal/authorization"
	basketdomain "github.com/smallbiznis/labdesk/internal/basket/domain"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/lock"
	obsmetrics "github.com/smallbiznis/labdesk/internal/observability/metrics"
	trainingdomain "github.com/smallbiznis/labdesk/internal/training/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Locker      lock.Locker
	Policy      *config.PolicyHolder
	ActiveUsers activeuserdomain.Service
	Baskets     basketdomain.Service
	Training    trainingdomain.Service
	AuthzSvc    authorization.Service `optional:"true"`
	AuditSvc    auditdomain.Service   `optional:"true"`
	Config      Config                `optional:"true"`
}

type Scheduler struct {
	log         *zap.Logger
	cfg         Config
	genID       *snowflake.Node
	clock       clock.Clock
	locker      lock.Locker
	policy      *config.PolicyHolder
	activeUsers activeuserdomain.Service
	baskets     basketdomain.Service
	training    trainingdomain.Service
	authzSvc    authorization.Service
	auditSvc    auditdomain.Service

	mu      sync.Mutex
	lastRun map[string]time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Locker == nil || p.Policy == nil ||
		p.ActiveUsers == nil || p.Baskets == nil || p.Training == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		genID:       p.GenID,
		clock:       p.Clock,
		locker:      p.Locker,
		policy:      p.Policy,
		activeUsers: p.ActiveUsers,
		baskets:     p.Baskets,
		training:    p.Training,
		authzSvc:    p.AuthzSvc,
		auditSvc:    p.AuditSvc,
		lastRun:     make(map[string]time.Time),
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := s.withLease(ctx, name, fn)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		s.logJobFinish(ctx, run, err)
	}
	if err == nil {
		s.markRun(name)
		return nil
	}

	schedMetrics.IncJobError(name, err)
	if errors.Is(err, obsmetrics.ErrLockHeld) {
		log.Info("job skipped, lease held elsewhere")
		return nil
	}

	// Deadline is a soft timeout. The job resumes next tick.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		schedMetrics.IncJobTimeout(name)
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Due     bool
		Run     func(context.Context) error
	}{
		{JobActiveUsers, s.isJobEnabled(JobActiveUsers), s.isDue(JobActiveUsers, s.cfg.ActiveUsersEvery), func(ctx context.Context) error {
			return s.runJob(ctx, JobActiveUsers, 10*time.Minute, s.ActiveUsersJob)
		}},
		{JobQuizTriggers, s.isJobEnabled(JobQuizTriggers), true, func(ctx context.Context) error {
			return s.runJob(ctx, JobQuizTriggers, time.Minute, s.QuizTriggersJob)
		}},
		{JobPurgeWarnings, s.isOptInJobEnabled(JobPurgeWarnings), s.isDue(JobPurgeWarnings, s.cfg.PurgeWarningsEvery), func(ctx context.Context) error {
			return s.runJob(ctx, JobPurgeWarnings, 5*time.Minute, s.PurgeWarningsJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled && job.Due {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty list enables every default job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	return s.isOptInJobEnabled(jobName)
}

// isOptInJobEnabled only honours an explicit listing.
func (s *Scheduler) isOptInJobEnabled(jobName string) bool {
	for _, enabled := range s.cfg.EnabledJobs {
		if enabled == jobName {
			return true
		}
	}
	return false
}

// isDue reports whether every has elapsed since the job last succeeded.
func (s *Scheduler) isDue(jobName string, every time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastRun[jobName]
	return !ok || !s.clock.Now().Before(last.Add(every))
}

func (s *Scheduler) markRun(jobName string) {
	s.mu.Lock()
	s.lastRun[jobName] = s.clock.Now()
	s.mu.Unlock()
}

// ActiveUsersJob rebuilds the Active Users sheet and then reconciles basket activity against it.
func (s *Scheduler) ActiveUsersJob(ctx context.Context) error {
	if err := s.authorizeSystem(ctx, authorization.ObjectActiveUsers, authorization.ActionActiveUsersRefresh); err != nil {
		return err
	}
	run := jobRunFromContext(ctx)
	schedMetrics := obsmetrics.Scheduler()

	res, err := s.activeUsers.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh active users: %w", err)
	}
	run.AddProcessed(res.Users)
	schedMetrics.AddProcessed(JobActiveUsers, "users", res.Users)
	s.recordAudit(ctx, auditdomain.ActionActiveUsersRefresh, "active_users", map[string]any{
		"months": res.Months,
		"users":  res.Users,
	})

	if err := s.authorizeSystem(ctx, authorization.ObjectBasket, authorization.ActionBasketReconcile); err != nil {
		return err
	}
	changes, err := s.baskets.Reconcile(ctx, s.policy.Get().GracePeriodDays)
	if err != nil {
		return fmt.Errorf("reconcile baskets: %w", err)
	}
	run.AddProcessed(len(changes))
	schedMetrics.AddProcessed(JobActiveUsers, "baskets", len(changes))
	s.recordAudit(ctx, auditdomain.ActionBasketReconcile, "basket_index", map[string]any{
		"grace_days": s.policy.Get().GracePeriodDays,
		"changes":    len(changes),
	})
	return nil
}

// QuizTriggersJob mails the group quiz for every training session that has ended.
func (s *Scheduler) QuizTriggersJob(ctx context.Context) error {
	fired, err := s.training.FireDueTriggers(ctx)
	jobRunFromContext(ctx).AddProcessed(fired)
	obsmetrics.Scheduler().AddProcessed(JobQuizTriggers, "events", fired)
	return err
}

func (s *Scheduler) PurgeWarningsJob(ctx context.Context) error {
	if err := s.authorizeSystem(ctx, authorization.ObjectBasket, authorization.ActionBasketPurge); err != nil {
		return err
	}
	report, err := s.baskets.SendPurgeWarnings(ctx)
	if err != nil {
		return err
	}
	run := jobRunFromContext(ctx)
	run.AddProcessed(report.Sent)
	obsmetrics.Scheduler().AddProcessed(JobPurgeWarnings, "emails", report.Sent)
	for range report.Failed {
		run.IncError()
	}
	s.recordAudit(ctx, auditdomain.ActionBasketPurge, "basket_index", map[string]any{
		"candidates": report.Candidates,
		"sent":       report.Sent,
	})
	return nil
}

func (s *Scheduler) recordAudit(ctx context.Context, action, targetType string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	entry := auditdomain.Entry{Action: action, TargetType: targetType, Metadata: metadata}
	if err := s.auditSvc.Record(ctx, entry); err != nil {
		s.logger(ctx).Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Scheduler) authorizeSystem(ctx context.Context, object string, action string) error {
	if s.authzSvc == nil {
		return nil
	}
	return s.authzSvc.Authorize(ctx, authorization.System, object, action)
}
