// pkg/log/log.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package log wraps slog with rotated JSON log files and call stacks on
// every record. A nil *Logger is valid: debug and info messages sent to it
// are dropped and warnings and errors go to slog's default logger.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*slog.Logger
	LogFile string // empty when not logging to a file
	Start   time.Time
}

var levels = map[string]slog.Level{
	"":      slog.LevelInfo,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ParseLevel maps the level names accepted on the command line and in
// configuration files to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	if lvl, ok := levels[level]; ok {
		return lvl, nil
	}
	return slog.LevelInfo, fmt.Errorf("%s: invalid log level", level)
}

// New returns a Logger that writes to fms.slog in dir, or in the user's
// config directory if dir is empty. The file is rotated once it gets
// large; debug logging allows a bigger file.
func New(level string, dir string) *Logger {
	if dir == "" {
		cfg, err := os.UserConfigDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "user config directory: %v\n", err)
			cfg = "."
		}
		dir = filepath.Join(cfg, "fms")
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	maxMB := 32
	if lvl == slog.LevelDebug {
		maxMB = 256
	}
	w := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "fms.slog"),
		MaxSize:    maxMB,
		MaxBackups: 1,
	}

	l := NewWriter(w, lvl)
	l.LogFile = w.Filename
	l.logEnvironment()
	return l
}

// NewWriter returns a Logger that writes JSON records to w.
func NewWriter(w io.Writer, lvl slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})),
		Start:  time.Now(),
	}
}

// logEnvironment records the platform and build at the top of a new log.
func (l *Logger) logEnvironment() {
	l.Info("logging started", slog.Time("start", l.Start))
	l.Info("system",
		slog.String("GOOS", runtime.GOOS),
		slog.String("GOARCH", runtime.GOARCH),
		slog.Int("cpus", runtime.NumCPU()))

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	deps := make([]any, 0, len(bi.Deps))
	for _, d := range bi.Deps {
		deps = append(deps, slog.String(d.Path, d.Version))
	}
	l.Info("build", slog.String("go", bi.GoVersion), slog.String("path", bi.Path),
		slog.Group("deps", deps...))
}

// emit is the common path for the leveled methods below. It must be
// called directly from them so that the recorded call stack starts at
// their caller.
func (l *Logger) emit(lvl slog.Level, msg string, args []any) {
	target := slog.Default()
	if l != nil {
		target = l.Logger
	} else if lvl < slog.LevelWarn {
		return
	}

	ctx := context.Background()
	if !target.Enabled(ctx, lvl) {
		return
	}
	args = append([]any{slog.Any("callstack", callstack(nil, 4))}, args...)
	target.Log(ctx, lvl, msg, args...)
}

// The methods below shadow the embedded slog.Logger's so that records
// include a call stack. The *Context variants and Log are not wrapped.

func (l *Logger) Debug(msg string, args ...any) { l.emit(slog.LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.emit(slog.LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.emit(slog.LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.emit(slog.LevelError, msg, args) }

func (l *Logger) Debugf(format string, args ...any) {
	l.emit(slog.LevelDebug, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Infof(format string, args ...any) {
	l.emit(slog.LevelInfo, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.emit(slog.LevelWarn, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.emit(slog.LevelError, fmt.Sprintf(format, args...), nil)
}

// With returns a Logger that includes the given attributes in each
// record. A nil Logger stays nil.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	w := *l
	w.Logger = l.Logger.With(args...)
	return &w
}
