// Package runner repeats verification tasks on a cron schedule.
package runner

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner schedules registered tasks. Executions of the same task never
// overlap; a tick that arrives while the previous run is still going is skipped.
type Runner struct {
	cron     *cron.Cron
	registry *TaskRegistry
	logger   *zap.Logger
}

// NewRunner creates a new task runner. logger may be nil.
func NewRunner(registry *TaskRegistry, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("runner")
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})),
		),
		registry: registry,
		logger:   logger,
	}
}

// Schedule registers every task with cron without starting it.
func (r *Runner) Schedule(ctx context.Context) error {
	for _, name := range r.registry.Names() {
		task, _ := r.registry.Get(name)
		r.logger.Info("registering task", zap.String("task", name), zap.String("schedule", task.Schedule()))
		if _, err := r.cron.AddFunc(task.Schedule(), func() {
			r.executeTask(ctx, task)
		}); err != nil {
			return fmt.Errorf("failed to schedule task %s: %w", name, err)
		}
	}
	return nil
}

// Start schedules all tasks and blocks until ctx ends or SIGINT/SIGTERM arrives.
// Running tasks see ctx, so cancelling it also aborts in-flight executions.
func (r *Runner) Start(ctx context.Context) error {
	r.logger.Info("starting task runner")
	if err := r.Schedule(ctx); err != nil {
		return err
	}
	r.cron.Start()
	return r.waitForShutdown(ctx)
}

// executeTask runs a single task with timeout and error handling
func (r *Runner) executeTask(ctx context.Context, task Task) {
	taskCtx, cancel := context.WithTimeout(ctx, task.Timeout())
	defer cancel()

	start := time.Now()
	err := task.Run(taskCtx)
	fields := []zap.Field{zap.String("task", task.Name()), zap.Duration("duration", time.Since(start))}
	if err != nil {
		r.logger.Warn("task failed", append(fields, zap.Error(err))...)
		return
	}
	r.logger.Info("task completed", fields...)
}

// RunNow executes a registered task immediately, outside the schedule.
func (r *Runner) RunNow(ctx context.Context, name string) error {
	task, ok := r.registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	r.executeTask(ctx, task)
	return nil
}

// Stop halts scheduling and waits for scheduled executions to complete.
// RunNow calls run on the caller's goroutine and are not tracked.
func (r *Runner) Stop() {
	r.logger.Info("stopping task runner")
	<-r.cron.Stop().Done()
	r.logger.Info("task runner stopped")
}

func (r *Runner) waitForShutdown(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		r.logger.Info("received signal", zap.Stringer("signal", sig))
		r.Stop()
		return nil
	case <-ctx.Done():
		r.Stop()
		return ctx.Err()
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
