// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"errors"
	"fmt"
)

// Failure classes. Errors from the jail steps wrap one of these; test
// with errors.Is.
var (
	// ErrUsage reports bad arguments. No privileged action was taken.
	ErrUsage = errors.New("usage error")

	// ErrIdentity reports a wrong caller, an ownership mismatch, or a
	// failed identity switch.
	ErrIdentity = errors.New("identity error")

	// ErrPath reports a missing or wrongly typed target, or a path that
	// does not fit in PATH_MAX.
	ErrPath = errors.New("path error")

	// ErrDeviceCreation reports a failed device node creation. The jail
	// is left partially provisioned.
	ErrDeviceCreation = errors.New("device creation error")

	// ErrSymlink reports a failed symlink creation.
	ErrSymlink = errors.New("symlink error")

	// ErrCapabilityParse reports a malformed capability descriptor or a
	// capability record that could not be applied.
	ErrCapabilityParse = errors.New("capability descriptor error")

	// ErrChildProcess reports a required child process (tag scripts)
	// that failed to start, exited nonzero, or was killed.
	ErrChildProcess = errors.New("child process error")

	// ErrFormat reports an executable without a usable interpreter line.
	ErrFormat = errors.New("format error")
)

// Preflight failures. All of them are identity errors.
var (
	ErrNotElevated      = fmt.Errorf("%w: helper is not running with effective uid 0 (is it installed setuid root?)", ErrIdentity)
	ErrIdentityMismatch = fmt.Errorf("%w: helper can only be run by the trusted account", ErrIdentity)
	ErrOwnership        = fmt.Errorf("%w: not owned by the trusted account", ErrIdentity)
	ErrPermission       = fmt.Errorf("%w: permission bits must be exactly 0700", ErrIdentity)
)
