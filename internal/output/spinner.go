package output

import (
	"fmt"

	"github.com/charmbracelet/huh/spinner"
)

// SpinnerOption configures a spinner.
type SpinnerOption func(*spinnerConfig)

type spinnerConfig struct {
	title   string
	enabled bool
}

// WithTitle sets the spinner title.
func WithTitle(title string) SpinnerOption {
	return func(c *spinnerConfig) {
		c.title = title
	}
}

// WithEnabled turns the spinner off when enabled is false, for example in
// verbose mode where log lines would interleave with it.
func WithEnabled(enabled bool) SpinnerOption {
	return func(c *spinnerConfig) {
		c.enabled = enabled
	}
}

// RunWithSpinner executes action while showing a spinner on stderr.
// Without a terminal the action runs directly. Returns the action's error.
func RunWithSpinner(action func() error, opts ...SpinnerOption) error {
	cfg := &spinnerConfig{
		title:   "Working...",
		enabled: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if !cfg.enabled || !IsTTY() {
		return action()
	}

	var actionErr error
	spinnerErr := spinner.New().
		Title(cfg.title).
		Action(func() {
			actionErr = action()
		}).
		Run()
	if spinnerErr != nil {
		return fmt.Errorf("spinner error: %w", spinnerErr)
	}
	return actionErr
}
