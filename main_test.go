package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected slog.Level
	}{
		{name: "unset", env: map[string]string{}, expected: slog.LevelInfo},
		{name: "generic variable", env: map[string]string{"LOG_LEVEL": "debug"}, expected: slog.LevelDebug},
		{name: "osle variable wins", env: map[string]string{"OSLE_LOG_LEVEL": "error", "LOG_LEVEL": "debug"}, expected: slog.LevelError},
		{name: "case insensitive", env: map[string]string{"LOG_LEVEL": "WARNING"}, expected: slog.LevelWarn},
		{name: "unknown value", env: map[string]string{"LOG_LEVEL": "loud"}, expected: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string { return tt.env[k] }
			assert.Equal(t, tt.expected, logLevel(getenv))
		})
	}
}
