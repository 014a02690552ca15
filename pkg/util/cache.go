// pkg/util/cache.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// ObjectCache keeps msgpack-encoded objects, zstd compressed, in files
// under Dir. Keys are slash-separated paths relative to Dir.
type ObjectCache struct {
	Dir string
}

// DefaultObjectCache returns a cache rooted in the user's cache directory.
func DefaultObjectCache() (ObjectCache, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ObjectCache{}, err
	}
	return ObjectCache{Dir: filepath.Join(dir, "fms")}, nil
}

func (c ObjectCache) Store(key string, obj any) (err error) {
	path := filepath.Join(c.Dir, filepath.FromSlash(key))
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			// Don't leave a truncated object behind for Retrieve to find.
			os.Remove(path)
		}
	}()

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return err
	}
	err = msgpack.NewEncoder(zw).Encode(obj)
	return errors.Join(err, zw.Close())
}

// Retrieve decodes the object stored under key into obj and returns the
// time at which it was stored.
func (c ObjectCache) Retrieve(key string, obj any) (time.Time, error) {
	f, err := os.Open(filepath.Join(c.Dir, filepath.FromSlash(key)))
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return time.Time{}, err
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		return time.Time{}, err
	}
	defer zr.Close()

	if err := msgpack.NewDecoder(zr).Decode(obj); err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// Cull deletes cached objects, least recently stored first, until the
// cache holds at most maxBytes.
func (c ObjectCache) Cull(maxBytes int64) error {
	type object struct {
		path string
		size int64
		mod  time.Time
	}
	var objs []object
	var total int64

	err := filepath.WalkDir(c.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == c.Dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			objs = append(objs, object{path: path, size: fi.Size(), mod: fi.ModTime()})
			total += fi.Size()
		}
		return nil
	})
	if err != nil {
		return err
	}

	slices.SortFunc(objs, func(a, b object) int { return a.mod.Compare(b.mod) })
	for _, o := range objs {
		if total <= maxBytes {
			break
		}
		if err := os.Remove(o.path); err == nil {
			total -= o.size
		}
	}
	return nil
}
