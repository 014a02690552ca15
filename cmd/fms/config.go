// cmd/fms/config.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mmp/fms/pkg/aviation"
	"github.com/mmp/fms/pkg/log"

	"github.com/BurntSushi/toml"
)

// Config holds defaults for the command-line options. It's read from
// config.toml in the user's config directory, or the file given with
// -config; command-line flags override it.
type Config struct {
	// CIFP files to load; paths ending in .zst are decompressed.
	CIFP []string `toml:"cifp"`
	// Directory for the parsed-CIFP cache; empty uses the user's cache
	// directory.
	CacheDir string `toml:"cache_dir"`
	NoCache  bool   `toml:"no_cache"`
	// Strict fails loading if procedures or airways refer to unknown
	// fixes.
	Strict bool `toml:"strict"`

	Logging LoggingConfig `toml:"logging"`

	// Path to the SQLite database of saved routes.
	Store string `toml:"store"`

	FlightPlan FlightPlanConfig `toml:"flightplan"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	Dir   string `toml:"dir"`
}

type FlightPlanConfig struct {
	// Holding speed used to size holds; 0 uses the speed for the hold
	// altitude.
	HoldSpeedKts float32 `toml:"hold_speed_kts"`
	// Airways searched by -airways: "low", "high" or "both".
	AirwayLevel string `toml:"airway_level"`
}

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "fms")
}

func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Store:   filepath.Join(defaultConfigDir(), "routes.db"),
		FlightPlan: FlightPlanConfig{
			AirwayLevel: "both",
		},
	}
}

// LoadConfig reads the configuration file at path. If path is empty, the
// default location is tried and a missing file there isn't an error.
func LoadConfig(path string, lg *log.Logger) (Config, error) {
	config := DefaultConfig()

	optional := path == ""
	if optional {
		path = filepath.Join(defaultConfigDir(), "config.toml")
	}

	md, err := toml.DecodeFile(path, &config)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return config, nil
		}
		return config, fmt.Errorf("%s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		lg.Warnf("%s: ignoring unknown settings %v", path, undec)
	}

	return config, config.Validate()
}

func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := aviation.ParseAirwayLevel(c.FlightPlan.AirwayLevel); err != nil {
		return fmt.Errorf("airway_level: %w", err)
	}
	if c.FlightPlan.HoldSpeedKts < 0 {
		return fmt.Errorf("hold_speed_kts: %.0f: must not be negative", c.FlightPlan.HoldSpeedKts)
	}
	return nil
}
