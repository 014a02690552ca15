// pkg/log/stack.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

type StackFrame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

func (f StackFrame) String() string {
	return fmt.Sprintf("%s:%d:%s", f.File, f.Line, f.Function)
}

// Callstack returns the stack of the function that called Callstack's
// caller, reusing fr's storage if it's large enough.
func Callstack(fr []StackFrame) []StackFrame {
	return callstack(fr, 4)
}

// callstack records at most 16 frames, starting skip frames up from
// runtime.Callers and stopping at main.main.
func callstack(fr []StackFrame, skip int) []StackFrame {
	var pcs [16]uintptr
	n := runtime.Callers(skip, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	fr = fr[:0]
	for {
		frame, more := frames.Next()
		if frame.PC == 0 {
			break
		}
		fn := strings.TrimPrefix(frame.Function, "github.com/mmp/fms/pkg")
		fn = strings.TrimPrefix(fn, "main.")
		fr = append(fr, StackFrame{
			File:     filepath.Base(frame.File),
			Line:     frame.Line,
			Function: fn,
		})
		if !more || frame.Function == "main.main" {
			break
		}
	}
	return fr
}
