package logger

import (
	"errors"
	"log/slog"
	"os"
	"testing"
)

func TestScope(t *testing.T) {
	tests := []struct {
		name  string
		scope string
		want  string
	}{
		{"basic scope", "engine", "engine"},
		{"nested scope", "engine.tick.catalyst", "engine.tick.catalyst"},
		{"empty scope", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := Scope(tt.scope)
			if attr.Key != "scope" {
				t.Errorf("Scope() key = %q, want %q", attr.Key, "scope")
			}
			if attr.Value.String() != tt.want {
				t.Errorf("Scope() value = %q, want %q", attr.Value.String(), tt.want)
			}
		})
	}
}

func TestErrorAttr(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"simple error", errors.New("template failure")},
		{"nil error", nil},
		{"wrapped error", errors.Join(errors.New("outer"), errors.New("inner"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := Error(tt.err)
			if attr.Key != "error" {
				t.Errorf("Error() key = %q, want %q", attr.Key, "error")
			}
			if got := attr.Value.Any(); got != tt.err {
				t.Errorf("Error() value = %v, want %v", got, tt.err)
			}
		})
	}
}

func TestNew_DefaultLevel(t *testing.T) {
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("GO_ENV")

	log := New()
	if log == nil {
		t.Fatal("New() returned nil")
	}
	if !log.Enabled(nil, slog.LevelInfo) {
		t.Error("New() should have info level enabled by default")
	}
}

func TestNew_DebugLevel(t *testing.T) {
	origLevel, hadLevel := os.LookupEnv("LOG_LEVEL")
	defer restoreEnv(t, "LOG_LEVEL", origLevel, hadLevel)

	os.Setenv("LOG_LEVEL", "debug")

	log := New()
	if !log.Enabled(nil, slog.LevelDebug) {
		t.Error("New() should have debug level enabled when LOG_LEVEL=debug")
	}
}

func TestNew_WarnLevel(t *testing.T) {
	origLevel, hadLevel := os.LookupEnv("LOG_LEVEL")
	defer restoreEnv(t, "LOG_LEVEL", origLevel, hadLevel)

	for _, level := range []string{"warn", "warning", "WARN"} {
		os.Setenv("LOG_LEVEL", level)

		log := New()
		if !log.Enabled(nil, slog.LevelWarn) {
			t.Errorf("New() should have warn level enabled when LOG_LEVEL=%s", level)
		}
		if log.Enabled(nil, slog.LevelInfo) {
			t.Errorf("New() should NOT have info level enabled when LOG_LEVEL=%s", level)
		}
	}
}

func restoreEnv(t *testing.T, key, orig string, had bool) {
	t.Helper()
	if had {
		os.Setenv(key, orig)
	} else {
		os.Unsetenv(key)
	}
}
