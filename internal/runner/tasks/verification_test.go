package tasks

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp-adi/uiverify/internal/browser"
	"github.com/erp-adi/uiverify/internal/config"
	"github.com/erp-adi/uiverify/internal/verify"
)

// unreachableSession behaves like a browser pointed at a server that is down.
type unreachableSession struct{ closed bool }

func (s *unreachableSession) Goto(string) error { return errors.New("net::ERR_CONNECTION_REFUSED") }
func (s *unreachableSession) URL() string { return "about:blank" }
func (s *unreachableSession) Fill(browser.Target, string) error { return nil }
func (s *unreachableSession) Click(browser.Target) error { return nil }
func (s *unreachableSession) Check(browser.Target) error { return nil }
func (s *unreachableSession) WaitForURL(string, time.Duration) error { return nil }
func (s *unreachableSession) WaitVisible(browser.Target, time.Duration) error { return nil }
func (s *unreachableSession) Count(browser.Target) (int, error) { return 0, nil }
func (s *unreachableSession) Screenshot(string) error { return errors.New("no page") }
func (s *unreachableSession) Close() error {
	s.closed = true
	return nil
}

type staticOpener struct {
	session browser.Session
	err     error
}

func (o staticOpener) Open(context.Context) (browser.Session, error) { return o.session, o.err }

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	l, err := config.Load("")
	require.NoError(t, err)
	return l.Get()
}

func TestVerificationTaskMetadata(t *testing.T) {
	cfg := loadConfig(t)
	task := NewVerificationTask(nil, nil, func() *config.Config { return cfg }, nil)

	assert.Equal(t, "account-form-verification", task.Name())
	assert.Equal(t, "0 */15 * * * *", task.Schedule())
	assert.Equal(t, 5*time.Minute, task.Timeout())

	cfg.Schedule.Cron = "*/30 * * * * *"
	cfg.Schedule.Timeout = 0
	assert.Equal(t, "*/30 * * * * *", task.Schedule())
	assert.Equal(t, 5*time.Minute, task.Timeout())
}

func TestVerificationTaskReturnsRunFailure(t *testing.T) {
	cfg := loadConfig(t)
	sess := &unreachableSession{}
	r := verify.NewRunner(staticOpener{session: sess}, verify.WithOutput(io.Discard))
	metrics := verify.NewMetrics()
	task := NewVerificationTask(r, metrics, func() *config.Config { return cfg }, nil)

	err := task.Run(context.Background())

	assert.ErrorIs(t, err, verify.ErrNavigationFailed)
	assert.True(t, sess.closed)
}

func TestVerificationTaskReturnsOpenError(t *testing.T) {
	cfg := loadConfig(t)
	r := verify.NewRunner(staticOpener{err: errors.New("no chromium")}, verify.WithOutput(io.Discard))
	task := NewVerificationTask(r, nil, func() *config.Config { return cfg }, nil)

	err := task.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no chromium")
}
