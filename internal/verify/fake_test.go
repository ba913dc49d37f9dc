package verify

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/erp-adi/uiverify/internal/browser"
	"github.com/erp-adi/uiverify/internal/config"
)

// fakeApp is an in-memory stand-in for the dashboard behind a browser
// session. It models just enough page state for the account form flow.
type fakeApp struct {
	cfg *config.Config

	authenticated bool
	noTable       bool
	headerHidden  bool
	stuckLogin    bool
	gotoErr       error
	shotErr       map[string]error

	url        string
	formOpen   bool
	subChecked bool
	calls      []string
	visits     []string
	closed     bool
}

func newFakeApp(cfg *config.Config) *fakeApp {
	return &fakeApp{cfg: cfg, url: "about:blank", shotErr: map[string]error{}}
}

func (a *fakeApp) record(format string, args ...any) {
	a.calls = append(a.calls, fmt.Sprintf(format, args...))
}

func (a *fakeApp) timeout(what string) error {
	return fmt.Errorf("%w: %s", browser.ErrTimeout, what)
}

func (a *fakeApp) path() string {
	return strings.TrimPrefix(a.url, a.cfg.App.BaseURL)
}

func (a *fakeApp) Goto(url string) error {
	a.record("goto %s", url)
	a.visits = append(a.visits, a.url)
	if a.gotoErr != nil {
		return a.gotoErr
	}
	app := a.cfg.App
	switch {
	case url == app.URL(app.LoginPath) && a.authenticated:
		a.url = app.URL(app.LandingPath)
	case url != app.URL(app.LoginPath) && !a.authenticated:
		a.url = app.URL(app.LoginPath)
	default:
		a.url = url
	}
	a.formOpen, a.subChecked = false, false
	return nil
}

func (a *fakeApp) URL() string { return a.url }

func (a *fakeApp) Fill(t browser.Target, value string) error {
	a.record("fill %s", t)
	if !a.visible(t) {
		return a.timeout("fill " + t.String())
	}
	return nil
}

func (a *fakeApp) Click(t browser.Target) error {
	a.record("click %s", t)
	if !a.visible(t) {
		return a.timeout("click " + t.String())
	}
	loc := a.cfg.Locators
	switch t {
	case loc.Submit:
		if !a.stuckLogin {
			a.authenticated = true
			a.url = a.cfg.App.URL(a.cfg.App.LandingPath)
		}
	case loc.NewRecord:
		a.formOpen = true
	}
	return nil
}

func (a *fakeApp) Check(t browser.Target) error {
	a.record("check %s", t)
	if !a.visible(t) {
		return a.timeout("check " + t.String())
	}
	if t == a.cfg.Locators.SubAccount {
		a.subChecked = true
	}
	return nil
}

func (a *fakeApp) WaitForURL(pattern string, timeout time.Duration) error {
	a.record("wait-url %s", pattern)
	if browser.MatchURL(pattern, a.url) {
		return nil
	}
	return a.timeout("url " + pattern)
}

func (a *fakeApp) WaitVisible(t browser.Target, timeout time.Duration) error {
	a.record("wait-visible %s", t)
	if a.visible(t) {
		return nil
	}
	return a.timeout("visible " + t.String())
}

func (a *fakeApp) Count(t browser.Target) (int, error) {
	if a.present(t) {
		return 1, nil
	}
	return 0, nil
}

func (a *fakeApp) Screenshot(path string) error {
	a.record("screenshot %s", path)
	if err := a.shotErr[path]; err != nil {
		return err
	}
	return os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nfake"), 0o644)
}

func (a *fakeApp) Close() error {
	a.closed = true
	return nil
}

func (a *fakeApp) present(t browser.Target) bool {
	if t == a.cfg.Locators.ColumnHeader && a.path() == a.cfg.App.FeaturePath {
		return !a.noTable
	}
	return a.visible(t)
}

func (a *fakeApp) visible(t browser.Target) bool {
	loc := a.cfg.Locators
	switch a.path() {
	case a.cfg.App.LoginPath:
		return t == loc.Email || t == loc.Password || t == loc.Submit
	case a.cfg.App.FeaturePath:
		switch t {
		case loc.Table:
			return !a.noTable
		case loc.ColumnHeader:
			return !a.noTable && !a.headerHidden
		case loc.NewRecord:
			return true
		case loc.FormSection, loc.SubAccount:
			return a.formOpen
		case loc.ParentSearch, loc.AutoCodeToggle:
			return a.subChecked
		}
	}
	return false
}

type fakeOpener struct {
	session browser.Session
	err     error
	opened  int
}

func (o *fakeOpener) Open(ctx context.Context) (browser.Session, error) {
	o.opened++
	if o.err != nil {
		return nil, o.err
	}
	return o.session, nil
}
