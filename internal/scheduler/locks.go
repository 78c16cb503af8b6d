package scheduler

import (
	"context"
	"errors"
	"fmt"

	obsmetrics "github.com/smallbiznis/labdesk/internal/observability/metrics"
)

const leasePrefix = "scheduler:"

// withLease runs fn while holding the job's lease so replicas never run the same job concurrently.
// A lease still held after LockWait yields ErrLockHeld.
func (s *Scheduler) withLease(ctx context.Context, job string, fn func(context.Context) error) error {
	claimCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
	defer cancel()

	release, err := s.locker.Acquire(claimCtx, leasePrefix+job)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%s: %w", job, obsmetrics.ErrLockHeld)
		}
		return err
	}
	defer release()
	return fn(ctx)
}
