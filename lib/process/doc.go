// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers. These functions
// centralize the raw I/O that happens before the structured logger
// exists or after main() has given up:
//
//   - Error reporting to stderr when the logger may not be initialized.
//   - Process exit with a status chosen by the error ([ExitError]).
package process
