package logger

import (
	"strings"

	"go.uber.org/zap"
)

// New returns a zap logger for the given environment. "development" gets the
// human-readable debug logger; anything else gets production JSON at info level.
func New(environment string) (*zap.Logger, error) {
	return NewLogger(strings.EqualFold(strings.TrimSpace(environment), "development"))
}

// NewLogger returns a development logger when debug is true, otherwise a production one.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Must is like New but falls back to a no-op logger on error
func Must(environment string) *zap.Logger {
	l, err := New(environment)
	if err != nil {
		return zap.NewNop()
	}
	return l
}
