package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/clock"
	obsmetrics "github.com/derrickmugabwa/kenya-food-database-api/internal/observability/metrics"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobPurgeExpiredOAuthTokens = "purge_expired_oauth_tokens"
	JobExpireAPIKeys           = "expire_api_keys"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// TokenPurger deletes access token rows that expired before a cutoff.
type TokenPurger interface {
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

// KeyExpirer flips active API keys past their expiry to expired.
type KeyExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// RunObserver is told the outcome of every job that got its lock.
type RunObserver interface {
	ObserveRun(job string, processed int64, duration time.Duration, err error)
}

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Tokens   TokenPurger
	Keys     KeyExpirer
	Locker   *ratelimit.Locker            `optional:"true"`
	Metrics  *obsmetrics.SchedulerMetrics `optional:"true"`
	Observer RunObserver                  `optional:"true"`
	Config   Config                       `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	tokens   TokenPurger
	keys     KeyExpirer
	locker   *ratelimit.Locker
	metrics  *obsmetrics.SchedulerMetrics
	observer RunObserver
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Tokens == nil || p.Keys == nil {
		return nil, ErrInvalidConfig
	}
	m := p.Metrics
	if m == nil {
		m = obsmetrics.Scheduler()
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		tokens:   p.Tokens,
		keys:     p.Keys,
		locker:   p.Locker,
		metrics:  m,
		observer: p.Observer,
	}, nil
}

// runJob executes fn under a timeout and, when Redis is configured, under a
// lock so only one replica runs the job per tick. Deadline overruns are
// reported but not returned.
func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context, run *jobRun) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	ctx, run := s.startJobRun(ctx, name)
	log := run.log

	release, acquired, err := s.acquire(ctx, name)
	if err != nil {
		s.metrics.IncJobError(name, err)
		return fmt.Errorf("%s: lock: %w", name, err)
	}
	if !acquired {
		s.metrics.IncJobSkipped(name)
		log.Debug("job skipped; lock held elsewhere")
		return nil
	}
	defer release()

	log.Info("scheduler.job.start")
	s.metrics.IncJobRun(name)

	err = fn(ctx, run)
	elapsed := s.clock.Now().Sub(start)
	s.metrics.ObserveJobDuration(name, elapsed)
	run.finish(elapsed, err)
	if s.observer != nil {
		s.observer.ObserveRun(name, run.processed, elapsed, err)
	}
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out", zap.Duration("timeout", s.cfg.JobTimeout), zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) acquire(ctx context.Context, name string) (func(), bool, error) {
	if !s.locker.Enabled() {
		return func() {}, true, nil
	}
	lease, err := s.locker.Acquire(ctx, "scheduler:"+name, s.cfg.LockTTL)
	if err != nil || lease == nil {
		return nil, false, err
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			s.log.Warn("failed to release job lock", zap.String("job", name), zap.Error(err))
		}
	}, true, nil
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	jobs := []struct {
		Name string
		Run  func(context.Context, *jobRun) error
	}{
		{JobPurgeExpiredOAuthTokens, s.PurgeExpiredOAuthTokensJob},
		{JobExpireAPIKeys, s.ExpireAPIKeysJob},
	}

	var err error
	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(ctx, job.Name, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// PurgeExpiredOAuthTokensJob deletes token rows past expiry plus the grace
// period. Revoked rows are kept until they expire so revocation stays visible.
func (s *Scheduler) PurgeExpiredOAuthTokensJob(ctx context.Context, run *jobRun) error {
	cutoff := s.clock.Now().Add(-s.cfg.TokenGracePeriod)
	deleted, err := s.tokens.DeleteExpiredTokens(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete tokens expired before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	run.AddProcessed(deleted)
	s.metrics.AddBatchProcessed(JobPurgeExpiredOAuthTokens, "oauth_tokens", deleted)
	return nil
}

func (s *Scheduler) ExpireAPIKeysJob(ctx context.Context, run *jobRun) error {
	expired, err := s.keys.ExpireStale(ctx)
	if err != nil {
		return fmt.Errorf("expire api keys: %w", err)
	}
	run.AddProcessed(expired)
	s.metrics.AddBatchProcessed(JobExpireAPIKeys, "api_keys", expired)
	return nil
}
