package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/erp-adi/uiverify/internal/config"
	"github.com/erp-adi/uiverify/internal/runner"
	"github.com/erp-adi/uiverify/internal/verify"
)

// VerificationTask runs the account form check on the configured schedule.
// It reads the configuration on every run so reloads take effect at the next tick.
type VerificationTask struct {
	runner  *verify.Runner
	metrics *verify.Metrics
	current func() *config.Config
	logger  *zap.Logger
}

// NewVerificationTask creates a new verification task. metrics may be nil.
func NewVerificationTask(r *verify.Runner, metrics *verify.Metrics, current func() *config.Config, logger *zap.Logger) runner.Task {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationTask{
		runner:  r,
		metrics: metrics,
		current: current,
		logger:  logger.Named("verification-task"),
	}
}

// Name identifies the task in the registry and in logs.
func (t *VerificationTask) Name() string {
	return "account-form-verification"
}

// Schedule returns schedule.cron from the current configuration.
func (t *VerificationTask) Schedule() string {
	return t.current().Schedule.Cron
}

// Timeout returns schedule.timeout, or five minutes when unset.
func (t *VerificationTask) Timeout() time.Duration {
	if d := t.current().Schedule.Timeout; d > 0 {
		return d
	}
	return 5 * time.Minute
}

// Run performs one verification and exports metrics. A failed verification
// is returned as the task error.
func (t *VerificationTask) Run(ctx context.Context) error {
	cfg := t.current()
	res, err := t.runner.Run(ctx, cfg, verify.AccountForm())
	if err != nil {
		return err
	}
	if t.metrics != nil {
		if err := t.metrics.Export(ctx, cfg.Metrics); err != nil {
			t.logger.Warn("metrics export failed", zap.Error(err))
		}
	}
	t.logger.Debug("verification finished",
		zap.String("run_id", res.RunID),
		zap.Stringer("outcome", res.Outcome),
		zap.String("artifact", res.Artifact))
	return res.Err
}
