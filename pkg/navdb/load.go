// pkg/navdb/load.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package navdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmp/fms/pkg/log"
	"github.com/mmp/fms/pkg/util"

	"golang.org/x/sync/errgroup"
)

// LoadOptions controls LoadFiles.
type LoadOptions struct {
	// Cache, if non-nil, holds parsed files so that they need not be
	// reparsed when unchanged.
	Cache *util.ObjectCache
	// Strict causes problems building the database (e.g. procedures
	// referring to unknown fixes) to be returned as an error.
	Strict bool
	Logger *log.Logger
}

// LoadFiles parses the given CIFP files concurrently and builds a
// database from all of them. Files with a ".zst" suffix are
// decompressed.
func LoadFiles(ctx context.Context, opts LoadOptions, paths ...string) (*Database, error) {
	start := time.Now()
	lg := opts.Logger

	results := make([]*Data, len(paths))
	eg, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := loadFile(path, opts.Cache, lg)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = d
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// Merge in the order given so that the result is deterministic.
	var all Data
	for _, d := range results {
		all.Merge(d)
	}

	db := NewDatabase(lg)
	if err := db.Build(&all); err != nil {
		if opts.Strict || !errors.Is(err, ErrUnresolved) {
			return nil, err
		}
		lg.Warn("navdb: incomplete data", "error", err)
	}

	lg.Info("navdb: loaded", "files", len(paths), "summary", db.String(), "elapsed", time.Since(start))
	return db, nil
}

func cacheKey(path string, fi os.FileInfo) string {
	base := strings.TrimSuffix(filepath.Base(path), ".zst")
	return filepath.Join("navdb", fmt.Sprintf("%s-%d-%d.msgpack", base, fi.Size(), fi.ModTime().Unix()))
}

func loadFile(path string, cache *util.ObjectCache, lg *log.Logger) (*Data, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var key string
	if cache != nil {
		key = cacheKey(path, fi)
		var d Data
		if _, err := cache.Retrieve(key, &d); err == nil {
			lg.Debugf("%s: using cached parse %s", path, key)
			return &d, nil
		}
	}

	f, err := util.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var e util.ErrorLogger
	e.Push(filepath.Base(path))
	d, err := ParseCIFP(f, &e)
	if err != nil {
		return nil, err
	}
	if e.HaveErrors() {
		lg.Warn("navdb: skipped malformed records", "file", path, "errors", e.String())
	}

	if cache != nil {
		if err := cache.Store(key, d); err != nil {
			lg.Warnf("%s: unable to cache: %v", key, err)
		}
	}
	return d, nil
}
