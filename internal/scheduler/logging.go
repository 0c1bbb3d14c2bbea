package scheduler

import (
	"context"
	"time"

	obscontext "github.com/derrickmugabwa/kenya-food-database-api/internal/observability/context"
	obslogger "github.com/derrickmugabwa/kenya-food-database-api/internal/observability/logger"
	obsmetrics "github.com/derrickmugabwa/kenya-food-database-api/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun is one execution of a job. Jobs report how many rows they touched
// through AddProcessed.
type jobRun struct {
	job       string
	startedAt time.Time
	processed int64
	log       *zap.Logger
}

func (r *jobRun) AddProcessed(count int64) {
	if r != nil && count > 0 {
		r.processed += count
	}
}

// startJobRun tags ctx with the scheduler as actor so audit rows and logs
// written by the job are attributed to it.
func (s *Scheduler) startJobRun(ctx context.Context, job string) (context.Context, *jobRun) {
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	run := &jobRun{
		job:       job,
		startedAt: s.clock.Now(),
	}
	run.log = obslogger.WithContext(ctx, s.log).With(
		zap.String("job", job),
		zap.String("run_id", s.genID.Generate().String()),
	)
	return ctx, run
}

func (r *jobRun) finish(elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("processed", r.processed),
	}
	if err != nil {
		r.log.Warn("scheduler.job.finish", append(fields,
			zap.String("error_type", obsmetrics.ClassifySchedulerJobReason(err)),
			zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
			zap.Error(err),
		)...)
		return
	}
	r.log.Info("scheduler.job.finish", fields...)
}
