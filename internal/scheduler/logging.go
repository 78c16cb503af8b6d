package scheduler

import (
	"context"
	"errors"
	"time"

	obscontext "github.com/smallbiznis/labdesk/internal/observability/context"
	obslogger "github.com/smallbiznis/labdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/labdesk/internal/observability/metrics"
	"go.uber.org/zap"
)

// actorScheduler tags everything a job writes, audit entries included.
const actorScheduler = "scheduler"

// Job outcomes reported on scheduler.job.finish.
const (
	outcomeOK      = "ok"
	outcomeSkipped = "skipped"
	outcomeTimeout = "timeout"
	outcomeFailed  = "failed"
)

type jobRun struct {
	job            string
	runID          string
	startedAt      time.Time
	processedCount int
	errorCount     int
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
}

// IncError counts a per-item failure that did not stop the job.
func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

// ensureJobRun starts a run unless ctx already carries one. The run id doubles as
// the request id so a job's log lines and audit entries correlate.
func (s *Scheduler) ensureJobRun(ctx context.Context, job string) (context.Context, *jobRun, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing := jobRunFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, actorScheduler, job)
	ctx = obscontext.WithRequestID(ctx, run.runID)
	return ctx, run, true
}

func jobRunFromContext(ctx context.Context) *jobRun {
	if ctx == nil {
		return nil
	}
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok {
		return run
	}
	return nil
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	s.logger(ctx).Info("scheduler.job.start", zap.String("job", run.job))
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun, err error) {
	if run == nil {
		return
	}
	outcome := jobOutcome(err)
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("outcome", outcome),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
		zap.Int("error_count", run.errorCount),
	}
	log := s.logger(ctx)
	if outcome == outcomeFailed || run.errorCount > 0 {
		log.Warn("scheduler.job.finish", append(fields, zap.Error(err))...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

func jobOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, obsmetrics.ErrLockHeld):
		return outcomeSkipped
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return outcomeTimeout
	default:
		return outcomeFailed
	}
}
