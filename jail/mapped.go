// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"fmt"
	"io"
	"os"
)

// MappedFile is a private in-memory snapshot of a whole file. The bytes
// are copied onto the heap through the descriptor that was checked, so
// later changes to the file (truncation included) do not reach them.
//
// Close is idempotent. After Close, Bytes panics.
type MappedFile struct {
	data   []byte
	closed bool
}

// mapFile opens path read-only and reads at most the size fstat
// reported. A file that grows after the fstat is cut at that size; one
// that shrinks yields a shorter snapshot.
func mapFile(path string) (*MappedFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("fstat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	size := info.Size()
	if size == 0 {
		return &MappedFile{data: []byte{}}, nil
	}
	if size > int64(^uint(0)>>1) {
		return nil, fmt.Errorf("%s is too large to read (%d bytes)", path, size)
	}

	data, err := io.ReadAll(io.LimitReader(file, size))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &MappedFile{data: data}, nil
}

// newMappedBytes wraps bytes already held in memory.
func newMappedBytes(data []byte) *MappedFile {
	return &MappedFile{data: data}
}

// Bytes returns the snapshot. Do not retain the slice past Close.
func (m *MappedFile) Bytes() []byte {
	if m.closed {
		panic("jail: read from closed mapped file")
	}
	return m.data
}

// Len returns the size of the snapshot.
func (m *MappedFile) Len() int {
	return len(m.data)
}

// Close releases the snapshot.
func (m *MappedFile) Close() error {
	m.closed = true
	m.data = nil
	return nil
}
