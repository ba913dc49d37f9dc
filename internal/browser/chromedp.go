package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// urlPollInterval is how often WaitForURL re-reads the location; chromedp
// has no native navigation wait keyed on a URL pattern.
const urlPollInterval = 100 * time.Millisecond

type chromedpOpener struct {
	opts   Options
	logger *zap.Logger
}

// getExecOptions translates Options into chromedp allocator options.
func (o *chromedpOpener) getExecOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:0:0], chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(o.opts.ViewportWidth, o.opts.ViewportHeight),
	)
	// DefaultExecAllocatorOptions is headless; override when a window is wanted.
	if !o.opts.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	for _, a := range o.opts.Args {
		name, value, hasValue := splitArg(a)
		if name == "" {
			continue
		}
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

func (o *chromedpOpener) Open(ctx context.Context) (Session, error) {
	if o.opts.SlowMo > 0 {
		o.logger.Debug("slow_mo is not supported by the chromedp driver; ignoring", zap.Duration("slow_mo", o.opts.SlowMo))
	}
	// The browser lives until Close, not until the caller's context ends.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), o.getExecOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser process.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}
	o.logger.Debug("browser session opened", zap.Bool("headless", o.opts.Headless))
	return &chromedpSession{
		ctx:            tabCtx,
		cancel:         func() { tabCancel(); allocCancel() },
		defaultTimeout: o.opts.DefaultTimeout,
		logger:         o.logger,
	}, nil
}

type chromedpSession struct {
	ctx            context.Context
	cancel         func()
	defaultTimeout time.Duration
	logger         *zap.Logger
}

func query(t Target) (string, chromedp.QueryOption) {
	if xp, ok := t.XPath(); ok {
		return xp, chromedp.BySearch
	}
	return t.CSS, chromedp.ByQuery
}

func (s *chromedpSession) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	err := chromedp.Run(ctx, actions...)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, err)
	}
	return err
}

func (s *chromedpSession) Goto(url string) error {
	return s.run(s.defaultTimeout, chromedp.Navigate(url))
}

func (s *chromedpSession) URL() string {
	var loc string
	if err := s.run(s.defaultTimeout, chromedp.Location(&loc)); err != nil {
		s.logger.Debug("could not read location", zap.Error(err))
		return ""
	}
	return loc
}

func (s *chromedpSession) Fill(t Target, value string) error {
	sel, by := query(t)
	return s.run(s.defaultTimeout,
		chromedp.SetValue(sel, "", by, chromedp.NodeVisible),
		chromedp.SendKeys(sel, value, by, chromedp.NodeVisible),
	)
}

func (s *chromedpSession) Click(t Target) error {
	sel, by := query(t)
	return s.run(s.defaultTimeout, chromedp.Click(sel, by, chromedp.NodeVisible))
}

func (s *chromedpSession) Check(t Target) error {
	sel, by := query(t)
	var checked bool
	if err := s.run(s.defaultTimeout, chromedp.JavascriptAttribute(sel, "checked", &checked, by, chromedp.NodeVisible)); err != nil {
		return err
	}
	if checked {
		return nil
	}
	return s.run(s.defaultTimeout, chromedp.Click(sel, by, chromedp.NodeVisible))
}

func (s *chromedpSession) WaitForURL(pattern string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(urlPollInterval)
	defer ticker.Stop()
	last := ""
	for {
		var loc string
		if err := s.run(timeout, chromedp.Location(&loc)); err == nil {
			last = loc
			if MatchURL(pattern, loc) {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: location %q did not match %q within %s", ErrTimeout, last, pattern, timeout)
		}
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *chromedpSession) WaitVisible(t Target, timeout time.Duration) error {
	sel, by := query(t)
	return s.run(timeout, chromedp.WaitVisible(sel, by))
}

func (s *chromedpSession) Count(t Target) (int, error) {
	sel, by := query(t)
	var nodes []*cdp.Node
	if err := s.run(s.defaultTimeout, chromedp.Nodes(sel, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (s *chromedpSession) Screenshot(path string) error {
	var buf []byte
	if err := s.run(s.defaultTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create screenshot directory: %w", err)
	}
	return os.WriteFile(path, buf, 0o644)
}

func (s *chromedpSession) Close() error {
	s.cancel()
	return nil
}
