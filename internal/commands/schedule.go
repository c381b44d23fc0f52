package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "downtowncal/internal/log"
)

// jobTimeout bounds one scheduled run.
const jobTimeout = 10 * time.Minute

// cronLogger routes cron's own messages into internal/log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}

// newScheduler registers job on spec. Overlapping runs are skipped and each
// run gets its own timeout derived from ctx. The caller starts and stops the
// returned scheduler.
func newScheduler(ctx context.Context, spec, name string, job func(context.Context) error) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
	)
	_, err := c.AddFunc(spec, func() {
		jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()

		start := time.Now()
		if err := job(jobCtx); err != nil {
			appLog.Error("scheduled run failed", err, "job", name)
			return
		}
		appLog.Info("scheduled run finished", "job", name, "took", time.Since(start).Round(time.Millisecond).String())
	})
	if err != nil {
		return nil, fmt.Errorf("commands: refresh schedule %q: %w", spec, err)
	}
	return c, nil
}

// runScheduled runs job on spec until ctx is canceled, then waits for a
// running job to return.
func runScheduled(ctx context.Context, spec, name string, job func(context.Context) error) error {
	c, err := newScheduler(ctx, spec, name, job)
	if err != nil {
		return err
	}
	c.Start()
	appLog.Info("scheduler started", "job", name, "schedule", spec)

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("scheduler stopped", "job", name)
	return nil
}
