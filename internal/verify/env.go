package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/erp-adi/uiverify/internal/browser"
	"github.com/erp-adi/uiverify/internal/config"
)

// Env is what a step sees: the session, the configuration and helpers that
// translate driver errors into the runner's failure kinds.
type Env struct {
	ctx     context.Context
	session browser.Session
	cfg     *config.Config
	out     io.Writer
	logger  *zap.Logger
	sleep   func(context.Context, time.Duration) error
	step    string
}

// Config returns the configuration snapshot of the current run.
func (e *Env) Config() *config.Config { return e.cfg }

// Session returns the open browser session.
func (e *Env) Session() browser.Session { return e.session }

// Context returns the run context.
func (e *Env) Context() context.Context { return e.ctx }

// Logger returns the run logger.
func (e *Env) Logger() *zap.Logger { return e.logger }

// Println writes a progress line to the console.
func (e *Env) Println(msg string) {
	fmt.Fprintln(e.out, msg)
}

func (e *Env) fail(kind Kind, target string, err error) error {
	return &StepError{Step: e.step, Kind: kind, Target: target, Err: err}
}

// Navigate loads url. Timeouts are navigation timeouts; anything else means
// the page could not be reached.
func (e *Env) Navigate(url string) error {
	e.logger.Debug("navigate", zap.String("url", url))
	if err := e.session.Goto(url); err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return e.fail(KindNavigationTimeout, url, err)
		}
		return e.fail(KindNavigationFailed, url, err)
	}
	return nil
}

// WaitForURL blocks until the location matches pattern.
func (e *Env) WaitForURL(pattern string, timeout time.Duration) error {
	if err := e.session.WaitForURL(pattern, timeout); err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return e.fail(KindNavigationTimeout, pattern, err)
		}
		return e.fail(KindNavigationFailed, pattern, err)
	}
	return nil
}

// WaitForElement blocks until t is visible. Any failure is ElementNotFound.
func (e *Env) WaitForElement(t browser.Target, timeout time.Duration) error {
	if err := e.session.WaitVisible(t, timeout); err != nil {
		return e.fail(KindElementNotFound, t.String(), err)
	}
	return nil
}

// ExpectVisible asserts t becomes visible within the assertion timeout.
func (e *Env) ExpectVisible(t browser.Target) error {
	if err := e.session.WaitVisible(t, e.cfg.Timeouts.Assertion); err != nil {
		return e.classify(t, err)
	}
	return nil
}

// Fill types value into t.
func (e *Env) Fill(t browser.Target, value string) error {
	if err := e.session.Fill(t, value); err != nil {
		return e.classify(t, err)
	}
	return nil
}

// Click clicks the first element matching t.
func (e *Env) Click(t browser.Target) error {
	if err := e.session.Click(t); err != nil {
		return e.classify(t, err)
	}
	return nil
}

// Check ticks the checkbox t.
func (e *Env) Check(t browser.Target) error {
	if err := e.session.Check(t); err != nil {
		return e.classify(t, err)
	}
	return nil
}

// Sleep pauses for d unless the run is cancelled first.
func (e *Env) Sleep(d time.Duration) error {
	if err := e.sleep(e.ctx, d); err != nil {
		return e.fail(KindUnknown, "", err)
	}
	return nil
}

// classify separates "no such element" from "element present but not in the
// expected state" with one extra lookup.
func (e *Env) classify(t browser.Target, err error) error {
	n, countErr := e.session.Count(t)
	if countErr == nil && n > 0 {
		return e.fail(KindAssertionFailed, t.String(), err)
	}
	return e.fail(KindElementNotFound, t.String(), err)
}
