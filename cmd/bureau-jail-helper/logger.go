// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// newLogger writes to stderr as text when it is a terminal and as JSON
// otherwise, so rmake's captured helper output stays machine-parseable.
// Only --verbose selects debug level; the environment of a setuid
// program belongs to its caller.
func newLogger(stderr io.Writer, verbose bool) *slog.Logger {
	return slog.New(newHandler(stderr, isTerminal(stderr), verbose))
}

func newHandler(w io.Writer, terminal, debug bool) slog.Handler {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		options.Level = slog.LevelDebug
	}
	if terminal {
		return slog.NewTextHandler(w, options)
	}
	return slog.NewJSONHandler(w, options)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
