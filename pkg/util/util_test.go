// pkg/util/util_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestErrorLogger(t *testing.T) {
	var e ErrorLogger
	if e.Err(nil) != nil {
		t.Errorf("expected no error from an empty ErrorLogger")
	}

	e.Push("KJFK")
	e.Push("DEEZZ5")
	e.ErrorString("unknown fix %q", "XXXXX")
	e.Pop()
	e.Error(errors.New("bad runway"))
	e.Pop()

	if !e.HaveErrors() {
		t.Fatalf("expected errors")
	}
	expected := "KJFK / DEEZZ5: unknown fix \"XXXXX\"\nKJFK: bad runway"
	if e.String() != expected {
		t.Errorf("got %q, expected %q", e.String(), expected)
	}

	base := errors.New("parse failed")
	if err := e.Err(base); !errors.Is(err, base) {
		t.Errorf("Err() should wrap the base error; got %v", err)
	}
}

func TestCheckDepthPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic for mismatched Push/Pop")
		}
	}()

	var e ErrorLogger
	func() {
		defer e.CheckDepth(e.CurrentDepth())
		e.Push("unbalanced")
	}()
}

func TestSortedMapKeys(t *testing.T) {
	m := map[string]int{"J80": 1, "Q42": 2, "A1": 3}
	if keys := SortedMapKeys(m); !slices.Equal(keys, []string{"A1", "J80", "Q42"}) {
		t.Errorf("got %v", keys)
	}
}

func TestFilterMapSlice(t *testing.T) {
	even := FilterSlice([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
	if !slices.Equal(even, []int{2, 4}) {
		t.Errorf("FilterSlice gave %v", even)
	}
	sq := MapSlice([]int{1, 2, 3}, func(v int) int { return v * v })
	if !slices.Equal(sq, []int{1, 4, 9}) {
		t.Errorf("MapSlice gave %v", sq)
	}
	if Select(true, "a", "b") != "a" || Select(false, "a", "b") != "b" {
		t.Errorf("Select is broken")
	}
}

func TestCompressedFiles(t *testing.T) {
	dir := t.TempDir()
	contents := strings.Repeat("SUSAP KJFKK6AJFK     0     145YHN40382374W073464329W013000013         1800018000C    MNAR    JOHN F KENNEDY INTL           300671907\n", 20)

	for _, name := range []string{"plain.dat", "packed.dat.zst"} {
		path := filepath.Join(dir, name)
		w, err := CreateFile(path)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if _, err := io.WriteString(w, contents); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("%s: %v", name, err)
		}

		r, err := OpenFile(path)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		b, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if string(b) != contents {
			t.Errorf("%s: contents differ after round trip", name)
		}

		if IsZstdPath(path) {
			raw, _ := os.ReadFile(path)
			if len(raw) >= len(contents) {
				t.Errorf("%s: expected compressed file to be smaller", name)
			}
			if dec, err := DecompressZstd(raw); err != nil || string(dec) != contents {
				t.Errorf("%s: DecompressZstd failed: %v", name, err)
			}
		}
	}
}

func TestObjectCache(t *testing.T) {
	type entry struct {
		Ident string
		Lat   float32
		Tags  []string
	}

	c := ObjectCache{Dir: t.TempDir()}
	in := []entry{{"JFK", 40.63, []string{"VOR"}}, {"CAMRN", 40.01, nil}}
	if err := c.Store("navdb/test.msgpack", in); err != nil {
		t.Fatalf("Store: %v", err)
	}

	var out []entry
	if _, err := c.Retrieve("navdb/test.msgpack", &out); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(out) != 2 || out[0].Ident != "JFK" || out[1].Lat != 40.01 || out[0].Tags[0] != "VOR" {
		t.Errorf("unexpected cache contents: %+v", out)
	}

	if err := c.Cull(0); err != nil {
		t.Fatalf("Cull: %v", err)
	}
	if _, err := c.Retrieve("navdb/test.msgpack", &out); err == nil {
		t.Errorf("expected object to be culled")
	}
}

func TestUnmarshalJSON(t *testing.T) {
	type doc struct {
		Route string
		Speed int
	}

	var d doc
	if err := UnmarshalJSON([]byte(`{"Route": "KJFK DCT KBOS", "Speed": 450}`), &d); err != nil {
		t.Fatal(err)
	} else if d.Route != "KJFK DCT KBOS" || d.Speed != 450 {
		t.Errorf("unexpected result %+v", d)
	}

	err := UnmarshalJSON([]byte("{\n  \"Route\": \"KJFK\",\n  \"Speed\": }"), &d)
	var serr *json.SyntaxError
	if !errors.As(err, &serr) || !strings.HasPrefix(err.Error(), "line 3,") {
		t.Errorf("syntax error: got %v", err)
	}

	err = UnmarshalJSON([]byte("{\"Speed\": \"fast\"}"), &d)
	var terr *json.UnmarshalTypeError
	if !errors.As(err, &terr) || !strings.HasPrefix(err.Error(), "line 1,") || !strings.Contains(err.Error(), "Speed") {
		t.Errorf("type error: got %v", err)
	}
}
