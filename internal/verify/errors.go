package verify

import (
	"errors"
	"fmt"
)

// Kind classifies why a verification step failed.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNavigationTimeout: an expected URL transition did not happen in time.
	KindNavigationTimeout
	// KindNavigationFailed: the page could not be loaded at all.
	KindNavigationFailed
	// KindElementNotFound: an expected element never appeared.
	KindElementNotFound
	// KindAssertionFailed: the element exists but not in the expected state.
	KindAssertionFailed
)

var (
	ErrNavigationTimeout = errors.New("navigation timeout")
	ErrNavigationFailed  = errors.New("navigation failed")
	ErrElementNotFound   = errors.New("element not found")
	ErrAssertionFailed   = errors.New("assertion failed")
)

func (k Kind) String() string {
	switch k {
	case KindNavigationTimeout:
		return "navigation_timeout"
	case KindNavigationFailed:
		return "navigation_failed"
	case KindElementNotFound:
		return "element_not_found"
	case KindAssertionFailed:
		return "assertion_failed"
	}
	return "unknown"
}

func (k Kind) sentinel() error {
	switch k {
	case KindNavigationTimeout:
		return ErrNavigationTimeout
	case KindNavigationFailed:
		return ErrNavigationFailed
	case KindElementNotFound:
		return ErrElementNotFound
	case KindAssertionFailed:
		return ErrAssertionFailed
	}
	return nil
}

// StepError reports the failed step, what it was looking at and why.
type StepError struct {
	Step   string
	Kind   Kind
	Target string
	Err    error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Step, e.Kind.sentinel())
	if e.Kind == KindUnknown {
		msg = e.Step
	}
	if e.Target != "" {
		msg += " (" + e.Target + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the driver error to errors.Is.
func (e *StepError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the failure kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, ErrNavigationTimeout):
		return KindNavigationTimeout
	case errors.Is(err, ErrNavigationFailed):
		return KindNavigationFailed
	case errors.Is(err, ErrElementNotFound):
		return KindElementNotFound
	case errors.Is(err, ErrAssertionFailed):
		return KindAssertionFailed
	}
	return KindUnknown
}
