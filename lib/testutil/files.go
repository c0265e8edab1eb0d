// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content to path with exactly mode, creating parent
// directories as needed. os.WriteFile alone is subject to the umask,
// which makes permission checks depend on the environment running the
// test.
func WriteFile(t testing.TB, path string, content []byte, mode os.FileMode) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating parent of %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatalf("chmod %s: %v", path, err)
	}
	return path
}

// PrivateDir creates a directory with mode 0700 under a fresh
// t.TempDir and returns its path. It is removed when the test
// completes.
func PrivateDir(t testing.TB, name string) string {
	t.Helper()

	directory := filepath.Join(t.TempDir(), name)
	if err := os.Mkdir(directory, 0o700); err != nil {
		t.Fatalf("creating %s: %v", directory, err)
	}
	if err := os.Chmod(directory, 0o700); err != nil {
		t.Fatalf("chmod %s: %v", directory, err)
	}
	return directory
}

// Chmod sets the mode of path or fails the test.
func Chmod(t testing.TB, path string, mode os.FileMode) {
	t.Helper()

	if err := os.Chmod(path, mode); err != nil {
		t.Fatalf("chmod %s: %v", path, err)
	}
}
