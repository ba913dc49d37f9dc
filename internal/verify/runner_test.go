package verify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp-adi/uiverify/internal/config"
)

const (
	successShot = "verification/account_form.png"
	failureShot = "verification/error.png"
)

// loadConfig loads the defaults from inside a fresh working directory so the
// relative artifact paths land in a temp dir.
func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	l, err := config.Load("")
	require.NoError(t, err)
	return l.Get()
}

type harness struct {
	cfg    *config.Config
	app    *fakeApp
	opener *fakeOpener
	out    *bytes.Buffer
	runner *Runner
	slept  []time.Duration
}

func newHarness(t *testing.T, opts ...Option) *harness {
	cfg := loadConfig(t)
	h := &harness{cfg: cfg, app: newFakeApp(cfg), out: &bytes.Buffer{}}
	h.opener = &fakeOpener{session: h.app}
	h.runner = NewRunner(h.opener, append([]Option{WithOutput(h.out)}, opts...)...)
	h.runner.sleep = func(_ context.Context, d time.Duration) error {
		h.slept = append(h.slept, d)
		return nil
	}
	return h
}

func (h *harness) run(t *testing.T) *Result {
	t.Helper()
	res, err := h.runner.Run(context.Background(), h.cfg, AccountForm())
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func (h *harness) lines() []string {
	return strings.Split(strings.TrimRight(h.out.String(), "\n"), "\n")
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	fi, err := os.Stat(path)
	require.NoError(t, err)
	return fi.Size()
}

func TestRunLogsInFromAnonymousSession(t *testing.T) {
	h := newHarness(t)

	res := h.run(t)

	require.NoError(t, res.Err)
	assert.Equal(t, Succeeded, res.Outcome)
	assert.Equal(t, successShot, res.Artifact)
	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.Steps, len(AccountForm()))

	loc := h.cfg.Locators
	assert.Equal(t, []string{
		"goto http://localhost:3000/login",
		"fill " + loc.Email.String(),
		"fill " + loc.Password.String(),
		"click " + loc.Submit.String(),
		"wait-url **/dashboard",
		"goto http://localhost:3000/dashboard/masters/akun-perkiraan",
	}, h.app.calls[:6])

	// The feature page is only visited from the authenticated landing page.
	require.Len(t, h.app.visits, 2)
	assert.Equal(t, "http://localhost:3000/dashboard", h.app.visits[1])

	assert.Greater(t, fileSize(t, successShot), int64(0))
	assert.NoFileExists(t, failureShot)
	assert.True(t, h.app.closed)

	lines := h.lines()
	assert.Equal(t, "Screenshot saved.", lines[len(lines)-1])
	assert.Contains(t, lines, "Logging in...")
	assert.Contains(t, lines, "Navigating to Akun Perkiraan...")
	assert.Contains(t, lines, "Logged in successfully.")
	assert.Contains(t, lines, "Table loaded.")
}

func TestRunLabelsFeatureByPathWithoutName(t *testing.T) {
	h := newHarness(t)
	h.cfg.App.FeatureName = ""

	res := h.run(t)

	require.NoError(t, res.Err)
	assert.Contains(t, h.lines(), "Navigating to /dashboard/masters/akun-perkiraan...")
}

func TestRunSkipsLoginWhenAuthenticated(t *testing.T) {
	h := newHarness(t)
	h.app.authenticated = true

	res := h.run(t)

	require.NoError(t, res.Err)
	for _, c := range h.app.calls {
		assert.False(t, strings.HasPrefix(c, "fill "), "unexpected credential entry: %s", c)
		assert.NotEqual(t, "click "+h.cfg.Locators.Submit.String(), c)
	}
	assert.Contains(t, h.lines(), "Already logged in.")
	assert.NotContains(t, h.lines(), "Logging in...")
}

func TestRunRevealsDependentControls(t *testing.T) {
	h := newHarness(t)

	res := h.run(t)
	require.NoError(t, res.Err)

	loc := h.cfg.Locators
	calls := strings.Join(h.app.calls, "\n")
	check := strings.Index(calls, "check "+loc.SubAccount.String())
	search := strings.Index(calls, "wait-visible "+loc.ParentSearch.String())
	auto := strings.Index(calls, "wait-visible "+loc.AutoCodeToggle.String())
	require.True(t, check >= 0 && search >= 0 && auto >= 0, calls)
	assert.Less(t, check, search)
	assert.Less(t, search, auto)
	assert.True(t, h.app.subChecked)
}

func TestRunSettlesBeforeScreenshot(t *testing.T) {
	h := newHarness(t)

	h.run(t)

	assert.Equal(t, []time.Duration{h.cfg.Timeouts.Settle}, h.slept)
	assert.Equal(t, "screenshot "+successShot, h.app.calls[len(h.app.calls)-1])
}

func TestRunMissingTableWritesFailureScreenshot(t *testing.T) {
	h := newHarness(t)
	h.app.noTable = true
	// A success screenshot from an earlier run must not survive a failure.
	require.NoError(t, os.MkdirAll("verification", 0o755))
	require.NoError(t, os.WriteFile(successShot, []byte("stale"), 0o644))

	res := h.run(t)

	assert.Equal(t, Failed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrElementNotFound)
	assert.Equal(t, KindElementNotFound, KindOf(res.Err))
	var se *StepError
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, StepWaitTable, se.Step)
	assert.Equal(t, h.cfg.Locators.Table.String(), se.Target)

	assert.Equal(t, failureShot, res.Artifact)
	assert.Greater(t, fileSize(t, failureShot), int64(0))
	assert.NoFileExists(t, successShot)

	lines := h.lines()
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "Test failed: "), lines)
	assert.NotContains(t, h.out.String(), "Screenshot saved.")
	assert.True(t, h.app.closed)
}

func TestRunFailureKinds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fakeApp)
		want   error
		kind   Kind
		step   string
	}{
		{
			name:   "login never leaves the login page",
			mutate: func(a *fakeApp) { a.stuckLogin = true },
			want:   ErrNavigationTimeout,
			kind:   KindNavigationTimeout,
			step:   StepLogin,
		},
		{
			name:   "column header present but hidden",
			mutate: func(a *fakeApp) { a.headerHidden = true },
			want:   ErrAssertionFailed,
			kind:   KindAssertionFailed,
			step:   StepColumnHeader,
		},
		{
			name:   "application unreachable",
			mutate: func(a *fakeApp) { a.gotoErr = errors.New("net::ERR_CONNECTION_REFUSED") },
			want:   ErrNavigationFailed,
			kind:   KindNavigationFailed,
			step:   StepOpenLogin,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.mutate(h.app)

			res := h.run(t)

			assert.Equal(t, Failed, res.Outcome)
			assert.ErrorIs(t, res.Err, tt.want)
			assert.Equal(t, tt.kind, KindOf(res.Err))
			var se *StepError
			require.ErrorAs(t, res.Err, &se)
			assert.Equal(t, tt.step, se.Step)
			assert.FileExists(t, failureShot)
			assert.NoFileExists(t, successShot)
		})
	}
}

func TestRunFailureScreenshotIsBestEffort(t *testing.T) {
	h := newHarness(t)
	h.app.noTable = true
	h.app.shotErr[failureShot] = errors.New("target closed")

	res := h.run(t)

	assert.Equal(t, Failed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrElementNotFound)
	assert.Empty(t, res.Artifact)
	assert.NoFileExists(t, failureShot)
	assert.NoFileExists(t, successShot)
	assert.True(t, h.app.closed)
}

func TestRunSuccessScreenshotErrorFailsRun(t *testing.T) {
	h := newHarness(t)
	h.app.shotErr[successShot] = errors.New("disk full")

	res := h.run(t)

	assert.Equal(t, Failed, res.Outcome)
	var se *StepError
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, "screenshot", se.Step)
	assert.NoFileExists(t, successShot)
	assert.FileExists(t, failureShot)
}

func TestRunOpenError(t *testing.T) {
	h := newHarness(t)
	h.opener.err = errors.New("chromium not installed")

	res, err := h.runner.Run(context.Background(), h.cfg, AccountForm())

	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "chromium not installed")
	assert.Empty(t, h.out.String())
}

func TestRunCancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.runner.Run(ctx, h.cfg, AccountForm())

	require.NoError(t, err)
	assert.Equal(t, Failed, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, h.app.visits)
	assert.True(t, h.app.closed)
}

func TestRunRecordsMetrics(t *testing.T) {
	m := NewMetrics()
	h := newHarness(t, WithMetrics(m))

	h.run(t)
	h.app.authenticated = false
	h.app.noTable = true
	h.run(t)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("element_not_found")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.lastSuccess))
}
