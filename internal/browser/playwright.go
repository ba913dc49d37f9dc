package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

type playwrightOpener struct {
	opts   Options
	logger *zap.Logger
}

// Open initializes playwright, launches chromium and creates a new page.
// Partially created resources are released when a later stage fails.
func (o *playwrightOpener) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runOpts := &playwright.RunOptions{Browsers: []string{"chromium"}}
	if o.opts.Install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("could not install playwright browsers: %w", err)
		}
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	s := &playwrightSession{pw: pw, logger: o.logger}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(o.opts.Headless),
		SlowMo:   playwright.Float(float64(o.opts.SlowMo.Milliseconds())),
		Args:     chromiumArgs(o.opts.Args),
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}
	s.browser = browser

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  o.opts.ViewportWidth,
			Height: o.opts.ViewportHeight,
		},
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not create context: %w", err)
	}
	s.context = bctx

	page, err := bctx.NewPage()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	page.SetDefaultTimeout(float64(o.opts.DefaultTimeout.Milliseconds()))
	s.page = page

	o.logger.Debug("browser session opened",
		zap.Bool("headless", o.opts.Headless),
		zap.Int("viewport_width", o.opts.ViewportWidth),
		zap.Int("viewport_height", o.opts.ViewportHeight))
	return s, nil
}

func chromiumArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		name, value, hasValue := splitArg(a)
		if name == "" {
			continue
		}
		if hasValue {
			out = append(out, "--"+name+"="+value)
		} else {
			out = append(out, "--"+name)
		}
	}
	return out
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	logger  *zap.Logger
}

func (s *playwrightSession) locate(t Target) playwright.Locator {
	var loc playwright.Locator
	switch t.Strategy() {
	case StrategyTestID:
		loc = s.page.GetByTestId(t.TestID)
	case StrategyRole:
		opts := playwright.PageGetByRoleOptions{}
		if t.Name != "" {
			opts.Name = t.Name
			opts.Exact = playwright.Bool(t.Exact)
		}
		loc = s.page.GetByRole(playwright.AriaRole(t.Role), opts)
	case StrategyLabel:
		loc = s.page.GetByLabel(t.Label, playwright.PageGetByLabelOptions{Exact: playwright.Bool(t.Exact)})
	case StrategyPlaceholder:
		loc = s.page.GetByPlaceholder(t.Placeholder, playwright.PageGetByPlaceholderOptions{Exact: playwright.Bool(t.Exact)})
	default:
		loc = s.page.Locator(t.CSS)
	}
	return loc
}

func (s *playwrightSession) Goto(url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad})
	if err != nil && strings.Contains(err.Error(), "ERR_TOO_MANY_REDIRECTS") {
		return fmt.Errorf("redirect loop navigating to %s: %w", url, err)
	}
	return wrapPlaywright(err)
}

func (s *playwrightSession) URL() string {
	return s.page.URL()
}

func (s *playwrightSession) Fill(t Target, value string) error {
	return wrapPlaywright(s.locate(t).First().Fill(value))
}

func (s *playwrightSession) Click(t Target) error {
	return wrapPlaywright(s.locate(t).First().Click())
}

func (s *playwrightSession) Check(t Target) error {
	return wrapPlaywright(s.locate(t).First().Check())
}

func (s *playwrightSession) WaitForURL(pattern string, timeout time.Duration) error {
	return wrapPlaywright(s.page.WaitForURL(pattern, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}))
}

func (s *playwrightSession) WaitVisible(t Target, timeout time.Duration) error {
	return wrapPlaywright(s.locate(t).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}))
}

func (s *playwrightSession) Count(t Target) (int, error) {
	n, err := s.locate(t).Count()
	return n, wrapPlaywright(err)
}

func (s *playwrightSession) Screenshot(path string) error {
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	})
	return wrapPlaywright(err)
}

// Close releases page, context, browser and driver in that order.
func (s *playwrightSession) Close() error {
	var errs []error
	if s.page != nil {
		errs = append(errs, s.page.Close())
	}
	if s.context != nil {
		errs = append(errs, s.context.Close())
	}
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
	}
	if s.pw != nil {
		errs = append(errs, s.pw.Stop())
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Debug("browser session close reported errors", zap.Error(err))
		return err
	}
	return nil
}

// wrapPlaywright tags playwright timeouts with ErrTimeout so callers never
// depend on the driver's error types.
func wrapPlaywright(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
