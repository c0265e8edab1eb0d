// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitError carries a specific exit status for an error returned from
// run(). Errors that do not wrap an ExitError exit with status 1.
type ExitError struct {
	Code int
	Err  error
}

// WithCode wraps err so that [Exit] terminates with code. A nil err
// stays nil.
func WithCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode implements the interface checked by [Code].
func (e *ExitError) ExitCode() int { return e.Code }

// Code returns the exit status for err: 0 for nil, the code of any
// wrapped error with an ExitCode method, and 1 otherwise.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}

// Report writes "error: err" to w and returns the exit status for err.
// Nothing is written for a nil error.
func Report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return Code(err)
}

// Exit reports err on stderr and terminates the process with its exit
// status. Use it in main() for errors from run() where the structured
// logger may not be initialized.
func Exit(err error) {
	os.Exit(Report(os.Stderr, err))
}
