// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"bytes"
	"fmt"
	"log/slog"
)

// InterpreterResolver finds the interpreter named on the "#!" line of
// an executable script.
type InterpreterResolver struct {
	system System
	logger *slog.Logger
}

// NewInterpreterResolver creates an InterpreterResolver.
func NewInterpreterResolver(system System, logger *slog.Logger) *InterpreterResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &InterpreterResolver{system: system, logger: logger}
}

// Resolve reads the head of path and returns the text between "#!" and
// the first newline, unmodified. Only the first PATH_MAX-1 bytes are
// read, so the newline must fall within them.
func (r *InterpreterResolver) Resolve(path string) (string, error) {
	head, err := r.system.ReadHead(path, PathMax-1)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", ErrFormat, path, err)
	}
	interpreter, err := ParseInterpreterLine(head)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	r.logger.Debug("resolved interpreter", "executable", path, "interpreter", interpreter)
	return interpreter, nil
}

// ParseInterpreterLine extracts the interpreter from the start of a
// script.
func ParseInterpreterLine(head []byte) (string, error) {
	if len(head) < 3 || head[0] != '#' || head[1] != '!' {
		return "", fmt.Errorf("%w: invalid interpreter line", ErrFormat)
	}
	newline := bytes.IndexByte(head, '\n')
	if newline < 0 {
		return "", fmt.Errorf("%w: interpreter line is not terminated within %d bytes", ErrFormat, len(head))
	}
	return string(head[2:newline]), nil
}
