// Package verify runs a scripted UI flow against a live application and
// records the outcome as a single screenshot artifact.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp-adi/uiverify/internal/browser"
	"github.com/erp-adi/uiverify/internal/config"
)

// Outcome is the binary result of a run.
type Outcome int

const (
	Failed Outcome = iota
	Succeeded
)

func (o Outcome) String() string {
	if o == Succeeded {
		return "succeeded"
	}
	return "failed"
}

// Result describes a completed run. Artifact is empty when the failure
// screenshot could not be captured.
type Result struct {
	RunID    string
	Outcome  Outcome
	Artifact string
	Err      error
	Started  time.Time
	Duration time.Duration
	Steps    []StepTiming
}

// StepTiming records a step that ran, whether or not it passed.
type StepTiming struct {
	Name     string
	Duration time.Duration
}

// Step is one blocking action of a scenario.
type Step struct {
	Name string
	Run  func(env *Env) error
}

// Runner executes scenarios against sessions obtained from an Opener.
type Runner struct {
	opener  browser.Opener
	logger  *zap.Logger
	out     io.Writer
	metrics *Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithOutput sets where progress lines are printed (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithLogger sets the structured logger; run lines carry a run_id field.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics records every run in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a runner that opens one session per Run. Without
// options it prints to stdout and discards logs.
func NewRunner(opener browser.Opener, opts ...Option) *Runner {
	r := &Runner{
		opener: opener,
		logger: zap.NewNop(),
		out:    os.Stdout,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run opens a session, executes steps in order and captures the artifact.
// A failing step ends the run with a Failed result and a nil error; the
// returned error is reserved for problems outside the flow itself, such
// as an unwritable artifact directory or a browser that will not start.
func (r *Runner) Run(ctx context.Context, cfg *config.Config, steps []Step) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Started: time.Now()}
	logger := r.logger.With(zap.String("run_id", res.RunID))

	if err := clearArtifacts(cfg.Artifacts); err != nil {
		return nil, err
	}

	sess, err := r.opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Debug("session close failed", zap.Error(err))
		}
	}()

	env := &Env{ctx: ctx, session: sess, cfg: cfg, out: r.out, logger: logger, sleep: r.sleep}

	res.Err = r.runSteps(env, steps, res)
	if res.Err == nil {
		res.Err = r.captureSuccess(env)
	}

	if res.Err != nil {
		res.Outcome = Failed
		fmt.Fprintf(r.out, "Test failed: %v\n", res.Err)
		logger.Error("verification failed",
			zap.String("kind", KindOf(res.Err).String()),
			zap.Error(res.Err))
		if shotErr := capture(sess, cfg.Artifacts.FailurePath); shotErr != nil {
			logger.Warn("failure screenshot not captured", zap.Error(shotErr))
		} else {
			res.Artifact = cfg.Artifacts.FailurePath
		}
	} else {
		res.Outcome = Succeeded
		res.Artifact = cfg.Artifacts.SuccessPath
	}
	res.Duration = time.Since(res.Started)

	if r.metrics != nil {
		r.metrics.Observe(res)
	}
	if res.Outcome == Succeeded {
		fmt.Fprintln(r.out, "Screenshot saved.")
	}
	return res, nil
}

func (r *Runner) runSteps(env *Env, steps []Step, res *Result) error {
	for _, step := range steps {
		if err := env.ctx.Err(); err != nil {
			return &StepError{Step: step.Name, Err: err}
		}
		env.step = step.Name
		start := time.Now()
		err := step.Run(env)
		d := time.Since(start)
		res.Steps = append(res.Steps, StepTiming{Name: step.Name, Duration: d})
		env.logger.Debug("step finished",
			zap.String("step", step.Name),
			zap.Duration("duration", d),
			zap.Bool("ok", err == nil))
		if err != nil {
			var se *StepError
			if !errors.As(err, &se) {
				err = &StepError{Step: step.Name, Err: err}
			}
			return err
		}
	}
	return nil
}

func (r *Runner) captureSuccess(env *Env) error {
	env.Println("Taking screenshot...")
	path := env.cfg.Artifacts.SuccessPath
	if err := capture(env.session, path); err != nil {
		// A partially written file would break the one-artifact rule.
		_ = os.Remove(path)
		return &StepError{Step: "screenshot", Target: path, Err: err}
	}
	return nil
}

func capture(sess browser.Session, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	return sess.Screenshot(path)
}

// clearArtifacts removes screenshots left by earlier runs so the directory
// only ever shows this run's outcome.
func clearArtifacts(a config.ArtifactsConfig) error {
	for _, p := range []string{a.SuccessPath, a.FailurePath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale artifact %s: %w", p, err)
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
