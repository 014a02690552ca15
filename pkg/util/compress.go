// pkg/util/compress.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// IsZstdPath reports whether the filename indicates zstd compression.
func IsZstdPath(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

type zstdReadCloser struct {
	*zstd.Decoder
	f *os.File
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return z.f.Close()
}

// OpenFile opens the named file for reading, transparently decompressing
// it if its name ends in ".zst".
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !IsZstdPath(path) {
		return f, nil
	}

	zr, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &zstdReadCloser{Decoder: zr, f: f}, nil
}

type zstdWriteCloser struct {
	*zstd.Encoder
	f *os.File
}

func (z *zstdWriteCloser) Close() error {
	err := z.Encoder.Close()
	if cerr := z.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// CreateFile creates or truncates the named file for writing; if the name
// ends in ".zst", the written data is zstd-compressed.
func CreateFile(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !IsZstdPath(path) {
		return f, nil
	}

	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &zstdWriteCloser{Encoder: zw, f: f}, nil
}

// DecompressZstd decompresses a zstd-compressed byte slice.
func DecompressZstd(b []byte) ([]byte, error) {
	zr, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return zr.DecodeAll(b, nil)
}
