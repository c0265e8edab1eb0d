// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the jail helper's
// packages.
//
// The helper's checks are mostly about file modes, and os.WriteFile and
// os.Mkdir both apply the process umask. [WriteFile] and [PrivateDir]
// create files and directories with exactly the requested mode so that
// tests behave the same under any umask. [PrivateDir] produces the 0700
// parent directory a jail must live in.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Bureau-internal dependencies.
package testutil
