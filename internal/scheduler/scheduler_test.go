package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	activeuserdomain "github.com/smallbiznis/labdesk/internal/activeuser/domain"
	auditdomain "github.com/smallbiznis/labdesk/internal/audit/domain"
	basketdomain "github.com/smallbiznis/labdesk/internal/basket/domain"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/lock"
	obscontext "github.com/smallbiznis/labdesk/internal/observability/context"
	obsmetrics "github.com/smallbiznis/labdesk/internal/observability/metrics"
	trainingdomain "github.com/smallbiznis/labdesk/internal/training/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type fakeActiveUsers struct {
	activeuserdomain.Service
	mu      sync.Mutex
	calls   int
	refresh error
}

func (f *fakeActiveUsers) Refresh(context.Context) (activeuserdomain.RefreshResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return activeuserdomain.RefreshResult{Users: 3}, f.refresh
}

func (f *fakeActiveUsers) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeBaskets struct {
	basketdomain.Service
	mu         sync.Mutex
	graceDays  []int
	purgeCalls int
}

func (f *fakeBaskets) Reconcile(_ context.Context, graceDays int) ([]basketdomain.StatusChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graceDays = append(f.graceDays, graceDays)
	return nil, nil
}

func (f *fakeBaskets) SendPurgeWarnings(context.Context) (basketdomain.PurgeReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeCalls++
	return basketdomain.PurgeReport{Candidates: 2, Sent: 1, Failed: []string{"bo@test.edu"}}, nil
}

type fakeTraining struct {
	trainingdomain.Service
	mu    sync.Mutex
	calls int
}

func (f *fakeTraining) FireDueTriggers(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 1, nil
}

type fakeAudit struct {
	auditdomain.Service
	mu      sync.Mutex
	entries []auditdomain.Entry
	actors  []string
}

func (f *fakeAudit) Record(ctx context.Context, entry auditdomain.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kind, id := obscontext.ActorFromContext(ctx)
	f.entries = append(f.entries, entry)
	f.actors = append(f.actors, kind+":"+id)
	return nil
}

type fixture struct {
	sched    *Scheduler
	clock    *clock.FakeClock
	locker   *lock.Local
	users    *fakeActiveUsers
	baskets  *fakeBaskets
	training *fakeTraining
	audit    *fakeAudit
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	registry := prometheus.NewRegistry()
	t.Cleanup(swapPrometheusRegistry(registry))
	obsmetrics.ResetSchedulerMetricsForTest()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	f := &fixture{
		clock:    clock.NewFakeClock(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)),
		locker:   lock.NewLocal(),
		users:    &fakeActiveUsers{},
		baskets:  &fakeBaskets{},
		training: &fakeTraining{},
		audit:    &fakeAudit{},
	}
	f.sched, err = New(Params{
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       f.clock,
		Locker:      f.locker,
		Policy:      config.NewStaticPolicyHolder(config.DefaultPolicy()),
		ActiveUsers: f.users,
		Baskets:     f.baskets,
		Training:    f.training,
		AuditSvc:    f.audit,
		Config:      cfg,
	})
	require.NoError(t, err)
	return f
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "labdesk",
		Environment: "test",
	})

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	s := &Scheduler{
		log:     zap.NewNop(),
		genID:   node,
		clock:   clock.NewFakeClock(time.Time{}),
		locker:  lock.NewLocal(),
		cfg:     Config{}.withDefaults(),
		lastRun: make(map[string]time.Time),
	}
	err = s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "labdesk",
		"env":     "test",
		"job":     "timeout_job",
	}
	if got := getCounterValue(t, registry, "labdesk_scheduler_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "labdesk",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "labdesk_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestRunOnceHonoursCadence(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, 1, f.users.Calls())
	assert.Equal(t, []int{60}, f.baskets.graceDays)
	assert.Equal(t, 1, f.training.calls)
	// Purge warnings stay off unless listed.
	assert.Zero(t, f.baskets.purgeCalls)

	f.clock.Advance(time.Hour)
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, 1, f.users.Calls())
	assert.Equal(t, 2, f.training.calls)

	f.clock.Advance(23 * time.Hour)
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, 2, f.users.Calls())
}

func TestFailedDailyJobRetriesNextTick(t *testing.T) {
	f := newFixture(t, Config{EnabledJobs: []string{JobActiveUsers}})
	f.users.refresh = errors.New("bucket unreachable")
	ctx := context.Background()

	err := f.sched.RunOnce(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobActiveUsers)
	assert.Empty(t, f.baskets.graceDays)
	assert.Zero(t, f.training.calls)

	f.users.mu.Lock()
	f.users.refresh = nil
	f.users.mu.Unlock()
	f.clock.Advance(time.Minute)
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, 2, f.users.Calls())
	assert.Equal(t, []int{60}, f.baskets.graceDays)
}

func TestPurgeWarningsOptIn(t *testing.T) {
	f := newFixture(t, Config{EnabledJobs: []string{JobPurgeWarnings}})
	ctx := context.Background()

	require.NoError(t, f.sched.RunOnce(ctx))
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, 1, f.baskets.purgeCalls)
	assert.Zero(t, f.users.Calls())

	f.clock.Advance(7 * 24 * time.Hour)
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, 2, f.baskets.purgeCalls)
}

func TestHeldLeaseSkipsJob(t *testing.T) {
	f := newFixture(t, Config{EnabledJobs: []string{JobQuizTriggers}, LockWait: 10 * time.Millisecond})
	release, err := f.locker.Acquire(context.Background(), leasePrefix+JobQuizTriggers)
	require.NoError(t, err)
	defer release()

	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Zero(t, f.training.calls)
}

func TestRunForeverStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, Config{RunInterval: 5 * time.Millisecond, EnabledJobs: []string{JobQuizTriggers}})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sched.RunForever(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		f.training.mu.Lock()
		defer f.training.mu.Unlock()
		return f.training.calls >= 2
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunForever did not return after cancel")
	}
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}

func TestJobOutcome(t *testing.T) {
	assert.Equal(t, outcomeOK, jobOutcome(nil))
	assert.Equal(t, outcomeSkipped, jobOutcome(fmt.Errorf("%s: %w", JobActiveUsers, obsmetrics.ErrLockHeld)))
	assert.Equal(t, outcomeTimeout, jobOutcome(context.DeadlineExceeded))
	assert.Equal(t, outcomeFailed, jobOutcome(errors.New("sheet unavailable")))
}

func TestJobsAreAuditedAsScheduler(t *testing.T) {
	f := newFixture(t, Config{EnabledJobs: []string{JobActiveUsers}})

	require.NoError(t, f.sched.RunOnce(context.Background()))

	f.audit.mu.Lock()
	defer f.audit.mu.Unlock()
	require.Len(t, f.audit.entries, 2)
	assert.Equal(t, auditdomain.ActionActiveUsersRefresh, f.audit.entries[0].Action)
	assert.Equal(t, 3, f.audit.entries[0].Metadata["users"])
	assert.Equal(t, auditdomain.ActionBasketReconcile, f.audit.entries[1].Action)
	assert.Equal(t, []string{"scheduler:" + JobActiveUsers, "scheduler:" + JobActiveUsers}, f.audit.actors)
}
