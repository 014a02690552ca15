// pkg/util/json.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// UnmarshalJSON decodes b into out. Syntax and type errors are reported
// with the line and column where decoding failed, which is more helpful
// than a byte offset when the JSON was written by hand.
func UnmarshalJSON[T any](b []byte, out *T) error {
	err := json.Unmarshal(b, out)
	if err == nil {
		return nil
	}

	var serr *json.SyntaxError
	var terr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &serr):
		line, col := lineColumn(b, serr.Offset)
		return fmt.Errorf("line %d, column %d: %w", line, col, err)
	case errors.As(err, &terr):
		line, col := lineColumn(b, terr.Offset)
		field := terr.Field
		if terr.Struct != "" {
			field = terr.Struct + "." + field
		}
		return fmt.Errorf("line %d, column %d: %s: %s value can't be used as %s: %w",
			line, col, field, terr.Value, terr.Type, err)
	default:
		return err
	}
}

// lineColumn converts a byte offset in b to 1-based line and column numbers.
func lineColumn(b []byte, offset int64) (line, col int) {
	offset = min(max(offset, 0), int64(len(b)))
	prefix := b[:offset]
	line = 1 + bytes.Count(prefix, []byte{'\n'})
	col = 1 + len(prefix) - (bytes.LastIndexByte(prefix, '\n') + 1)
	return
}
