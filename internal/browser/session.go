// Package browser abstracts the page-automation capability the verification
// runner drives. Two drivers are provided: playwright-go and chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DriverPlaywright = "playwright"
	DriverChromedp   = "chromedp"
)

// ErrTimeout is wrapped by every driver error caused by an exhausted wait.
var ErrTimeout = errors.New("browser: timeout")

// Session is one open browser page. Implementations are not safe for
// concurrent use; the runner drives a session from a single goroutine.
type Session interface {
	// Goto navigates to an absolute URL and waits for the load event.
	Goto(url string) error
	// URL returns the current page location.
	URL() string
	Fill(t Target, value string) error
	Click(t Target) error
	// Check ticks a checkbox; already-checked boxes are left alone.
	Check(t Target) error
	// WaitForURL blocks until the location matches pattern (see MatchURL).
	WaitForURL(pattern string, timeout time.Duration) error
	// WaitVisible blocks until the first element matching t is visible.
	WaitVisible(t Target, timeout time.Duration) error
	// Count returns the number of elements currently matching t.
	Count(t Target) (int, error)
	// Screenshot writes a PNG of the viewport to path.
	Screenshot(path string) error
	Close() error
}

// Opener creates sessions.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// Options configures a driver.
type Options struct {
	Driver         string
	Headless       bool
	SlowMo         time.Duration
	ViewportWidth  int
	ViewportHeight int
	// DefaultTimeout bounds actions that have no explicit timeout (Goto, Click, Fill).
	DefaultTimeout time.Duration
	// Install downloads the driver's browser before first use (playwright only).
	Install bool
	// Args are extra browser command-line switches, "name" or "name=value".
	Args []string
}

// NewOpener returns the Opener for opts.Driver.
func NewOpener(opts Options, logger *zap.Logger) (Opener, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 30 * time.Second
	}
	if opts.ViewportWidth <= 0 || opts.ViewportHeight <= 0 {
		opts.ViewportWidth, opts.ViewportHeight = 1280, 720
	}
	switch opts.Driver {
	case DriverPlaywright, "":
		return &playwrightOpener{opts: opts, logger: logger.Named("playwright")}, nil
	case DriverChromedp:
		return &chromedpOpener{opts: opts, logger: logger.Named("chromedp")}, nil
	}
	return nil, fmt.Errorf("unknown browser driver %q", opts.Driver)
}

// MatchURL reports whether rawURL matches pattern. Patterns follow the
// playwright glob convention: "**" matches any run of characters, "*"
// matches any run except "/", "?" matches a single character. A pattern
// without wildcards must equal the URL.
func MatchURL(pattern, rawURL string) bool {
	if !strings.ContainsAny(pattern, "*?") {
		return pattern == rawURL
	}
	return globToRegexp(pattern).MatchString(rawURL)
}

func globToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			b.WriteString(".*")
			i++
		case c == '*':
			b.WriteString("[^/]*")
		case c == '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// splitArg turns "name=value" into its parts with any leading dashes removed.
func splitArg(arg string) (string, string, bool) {
	arg = strings.TrimLeft(arg, "-")
	name, value, hasValue := strings.Cut(arg, "=")
	return name, value, hasValue
}
