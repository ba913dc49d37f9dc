package browser

import (
	"errors"
	"fmt"
	"strings"
)

// Target describes how to find one element on a page. A valid target populates
// exactly one strategy; Strategy resolves in the order TestID, Role, Label,
// Placeholder, CSS.
type Target struct {
	Role        string `mapstructure:"role" yaml:"role,omitempty"`
	Name        string `mapstructure:"name" yaml:"name,omitempty"`
	Label       string `mapstructure:"label" yaml:"label,omitempty"`
	Placeholder string `mapstructure:"placeholder" yaml:"placeholder,omitempty"`
	TestID      string `mapstructure:"test_id" yaml:"test_id,omitempty"`
	CSS         string `mapstructure:"css" yaml:"css,omitempty"`
	Exact       bool   `mapstructure:"exact" yaml:"exact,omitempty"`
}

// Strategy identifies which Target field drives the lookup.
type Strategy string

const (
	StrategyNone        Strategy = ""
	StrategyTestID      Strategy = "test-id"
	StrategyRole        Strategy = "role"
	StrategyLabel       Strategy = "label"
	StrategyPlaceholder Strategy = "placeholder"
	StrategyCSS         Strategy = "css"
)

// TestIDAttribute is the attribute GetByTestId and the XPath translation match.
const TestIDAttribute = "data-testid"

var (
	// ErrEmptyTarget is returned by Validate when no strategy is populated.
	ErrEmptyTarget = errors.New("target has no locator strategy")
	// ErrConflictingTarget is returned by Validate when several strategies are populated.
	ErrConflictingTarget = errors.New("target sets more than one locator strategy")
)

// Strategy reports the strategy the target resolves with.
func (t Target) Strategy() Strategy {
	switch {
	case t.TestID != "":
		return StrategyTestID
	case t.Role != "":
		return StrategyRole
	case t.Label != "":
		return StrategyLabel
	case t.Placeholder != "":
		return StrategyPlaceholder
	case t.CSS != "":
		return StrategyCSS
	}
	return StrategyNone
}

// Validate reports targets that name no strategy, more than one strategy, or
// a role name without a role.
func (t Target) Validate() error {
	if t.Strategy() == StrategyNone {
		return ErrEmptyTarget
	}
	if n := t.strategies(); len(n) > 1 {
		return fmt.Errorf("%w: %s", ErrConflictingTarget, strings.Join(n, ", "))
	}
	if t.Name != "" && t.Role == "" {
		return fmt.Errorf("name %q requires a role", t.Name)
	}
	return nil
}

func (t Target) strategies() []string {
	var out []string
	for _, f := range []struct {
		s   Strategy
		val string
	}{
		{StrategyTestID, t.TestID},
		{StrategyRole, t.Role},
		{StrategyLabel, t.Label},
		{StrategyPlaceholder, t.Placeholder},
		{StrategyCSS, t.CSS},
	} {
		if f.val != "" {
			out = append(out, string(f.s))
		}
	}
	return out
}

func (t Target) String() string {
	switch t.Strategy() {
	case StrategyTestID:
		return fmt.Sprintf("test-id=%q", t.TestID)
	case StrategyRole:
		if t.Name != "" {
			return fmt.Sprintf("role=%s[name=%q]", t.Role, t.Name)
		}
		return "role=" + t.Role
	case StrategyLabel:
		return fmt.Sprintf("label=%q", t.Label)
	case StrategyPlaceholder:
		return fmt.Sprintf("placeholder=%q", t.Placeholder)
	case StrategyCSS:
		return "css=" + t.CSS
	}
	return "<empty target>"
}

// roleElements maps the ARIA roles the flow uses onto the HTML elements
// that carry them implicitly.
var roleElements = map[string][]string{
	"button":       {"button", "input[@type='button']", "input[@type='submit']"},
	"columnheader": {"th"},
	"table":        {"table"},
	"checkbox":     {"input[@type='checkbox']"},
	"textbox":      {"input[not(@type) or @type='text' or @type='email' or @type='search']", "textarea"},
	"link":         {"a[@href]"},
	"heading":      {"h1", "h2", "h3", "h4", "h5", "h6"},
}

// XPath translates the target into an XPath expression for drivers without
// accessibility-tree queries. CSS targets cannot be translated and report false.
func (t Target) XPath() (string, bool) {
	switch t.Strategy() {
	case StrategyTestID:
		return fmt.Sprintf("//*[@%s=%s]", TestIDAttribute, xpathLiteral(t.TestID)), true
	case StrategyRole:
		elems := roleElements[t.Role]
		parts := make([]string, 0, len(elems)+1)
		for _, e := range elems {
			parts = append(parts, "//"+e+t.nameFilter())
		}
		parts = append(parts, fmt.Sprintf("//*[@role=%s]%s", xpathLiteral(t.Role), t.nameFilter()))
		return strings.Join(parts, " | "), true
	case StrategyLabel:
		lbl := t.textMatch("normalize-space(.)", t.Label)
		return fmt.Sprintf("//*[@id=//label[%[1]s]/@for] | //label[%[1]s]//input | //*[@aria-label=%[2]s]",
			lbl, xpathLiteral(t.Label)), true
	case StrategyPlaceholder:
		return fmt.Sprintf("//*[%s]", t.textMatch("@placeholder", t.Placeholder)), true
	}
	return "", false
}

func (t Target) nameFilter() string {
	if t.Name == "" {
		return ""
	}
	return fmt.Sprintf("[%s or %s]",
		t.textMatch("normalize-space(.)", t.Name),
		t.textMatch("@aria-label", t.Name))
}

func (t Target) textMatch(expr, text string) string {
	if t.Exact {
		return fmt.Sprintf("%s=%s", expr, xpathLiteral(text))
	}
	return fmt.Sprintf("contains(%s, %s)", expr, xpathLiteral(text))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
