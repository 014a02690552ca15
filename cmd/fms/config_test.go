// cmd/fms/config_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	write := func(name, contents string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	path := write("config.toml", `
cifp = ["FAACIFP18.zst", "extra.dat"]
cache_dir = "/tmp/fms-cache"
store = "/tmp/routes.db"

[logging]
level = "debug"

[flightplan]
hold_speed_kts = 210
airway_level = "high"
`)
	config, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(config.CIFP, []string{"FAACIFP18.zst", "extra.dat"}) || config.CacheDir != "/tmp/fms-cache" ||
		config.Store != "/tmp/routes.db" || config.Logging.Level != "debug" ||
		config.FlightPlan.HoldSpeedKts != 210 || config.FlightPlan.AirwayLevel != "high" {
		t.Errorf("unexpected config %+v", config)
	}

	// Unset values keep their defaults.
	config, err = LoadConfig(write("partial.toml", `cifp = ["a.dat"]`), nil)
	if err != nil {
		t.Fatal(err)
	}
	if def := DefaultConfig(); config.Store != def.Store || config.Logging.Level != "info" || config.FlightPlan.AirwayLevel != "both" {
		t.Errorf("defaults not kept: %+v", config)
	}

	for _, contents := range []string{
		`cifp = "not a list"`,
		"[logging]\nlevel = \"loud\"",
		"[flightplan]\nairway_level = \"medium\"",
		"[flightplan]\nhold_speed_kts = -5",
	} {
		if _, err := LoadConfig(write("bad.toml", contents), nil); err == nil {
			t.Errorf("%q: expected an error", contents)
		}
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.toml"), nil); err == nil {
		t.Errorf("expected an error for a missing file given explicitly")
	}
}
