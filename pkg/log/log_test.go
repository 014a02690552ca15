// pkg/log/log_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestNilLogger(t *testing.T) {
	var lg *Logger
	// None of these should crash.
	lg.Debug("debug")
	lg.Debugf("debug %d", 1)
	lg.Info("info")
	lg.Infof("info %d", 1)
	if lg.With("key", "value") != nil {
		t.Errorf("With on a nil logger should return nil")
	}
}

func TestWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWriter(&buf, slog.LevelInfo)

	lg.Debug("hidden")
	lg.With(slog.String("plan", "EGLL-LFPG")).Info("inserted", slog.Int("index", 3))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d: %s", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["msg"] != "inserted" || rec["plan"] != "EGLL-LFPG" || rec["index"] != float64(3) {
		t.Errorf("unexpected record contents: %v", rec)
	}
	stack, ok := rec["callstack"].([]any)
	if !ok || len(stack) == 0 {
		t.Fatalf("record is missing the callstack attribute: %v", rec)
	}
	if top, _ := stack[0].(map[string]any); top == nil || !strings.Contains(fmt.Sprint(top["function"]), "TestWriterLogger") {
		t.Errorf("callstack should start at the caller; got %v", stack[0])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		s   string
		lvl slog.Level
		ok  bool
	}{
		{"debug", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}
	for _, test := range tests {
		lvl, err := ParseLevel(test.s)
		if (err == nil) != test.ok || lvl != test.lvl {
			t.Errorf("ParseLevel(%q) = %v, %v", test.s, lvl, err)
		}
	}
}
