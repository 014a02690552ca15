// pkg/util/error.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmp/fms/pkg/log"
)

// ErrorLogger collects the problems found while parsing navigation data
// or a route string so that parsing can continue past the first one. Each
// message is prefixed with the context that was pushed when it was
// reported, e.g. "KJFK / SID SKORR5: unknown fix".
type ErrorLogger struct {
	hierarchy []string // Push/Pop context
	errors    []string
}

func (e *ErrorLogger) Push(s string) {
	e.hierarchy = append(e.hierarchy, s)
}

func (e *ErrorLogger) Pop() {
	e.hierarchy = e.hierarchy[:len(e.hierarchy)-1]
}

func (e *ErrorLogger) ErrorString(s string, args ...any) {
	e.errors = append(e.errors, e.prefix()+fmt.Sprintf(s, args...))
}

func (e *ErrorLogger) Error(err error) {
	e.errors = append(e.errors, e.prefix()+err.Error())
}

func (e *ErrorLogger) prefix() string {
	if len(e.hierarchy) == 0 {
		return ""
	}
	return strings.Join(e.hierarchy, " / ") + ": "
}

func (e *ErrorLogger) HaveErrors() bool {
	return len(e.errors) > 0
}

func (e *ErrorLogger) String() string {
	return strings.Join(e.errors, "\n")
}

// Err returns nil if no errors have been reported and otherwise an error
// that wraps base (which may be nil) and includes all of the messages.
func (e *ErrorLogger) Err(base error) error {
	if !e.HaveErrors() {
		return nil
	}
	if base == nil {
		return errors.New(e.String())
	}
	return fmt.Errorf("%w: %s", base, strings.Join(e.errors, "; "))
}

// CheckDepth panics if the Push/Pop depth differs from d; it is intended
// to be deferred at the start of functions that push context.
func (e *ErrorLogger) CheckDepth(d int) {
	if e == nil || e.CurrentDepth() == d {
		return
	}

	if r := recover(); r != nil {
		// Don't hide the original panic.
		panic(r)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Initial ErrorLogger depth %d, final %d\n", d, e.CurrentDepth())
	for _, f := range log.Callstack(nil) {
		fmt.Fprintf(&sb, "%15s:%d %s\n", f.File, f.Line, f.Function)
	}
	panic(sb.String())
}

func (e *ErrorLogger) CurrentDepth() int {
	if e == nil {
		return 0
	}
	return len(e.hierarchy)
}
