package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/MrWong99/toolbox/internal/config"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		format config.LogFormat
		check  func(t *testing.T, out string)
	}{
		{"text", config.LogFormatText, func(t *testing.T, out string) {
			if !strings.Contains(out, "msg=hello") {
				t.Errorf("text output = %q", out)
			}
		}},
		{"json", config.LogFormatJSON, func(t *testing.T, out string) {
			var rec map[string]any
			if err := json.Unmarshal([]byte(out), &rec); err != nil {
				t.Fatalf("json output %q: %v", out, err)
			}
			if rec["msg"] != "hello" {
				t.Errorf("msg = %v", rec["msg"])
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			newLogger(&buf, tt.format, slog.LevelInfo).Info("hello")
			tt.check(t, buf.String())
		})
	}
}

func TestNewLogger_LevelVar(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger := newLogger(&buf, config.LogFormatText, level)

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}

	level.Set(slog.LevelDebug)
	logger.Debug("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("debug record missing after level change: %q", buf.String())
	}
}
