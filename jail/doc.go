// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package jail prepares and tears down a chroot jail for a build worker
// from inside a setuid-root helper, then drops privilege and execs the
// worker's server inside the jail.
//
// The central type is [Helper]. [Helper.Validate] is the preflight gate:
// the helper must run with effective uid 0 on behalf of the trusted
// account, and the jail and its real parent must belong to that account,
// with the parent at mode 0700. Both [Helper.Setup] and
// [Helper.Teardown] run it before anything else.
//
// Setup runs its steps in a fixed order:
//
//   - [Mounter] mounts the mount table (and optionally a tmpfs on /tmp),
//     skipping targets that are already mount points
//   - the [Switcher] moves the process to root:root
//   - [Provisioner] creates device nodes, then symlinks
//   - [CapabilityApplier] applies the jail's capability descriptor
//   - the Switcher moves to the trusted account keeping only
//     [SetupCapabilities] (chroot, setuid, setgid)
//   - [ChrootController] enters the jail
//   - [TagScriptRunner] runs the tag script
//   - the Switcher drops to the restricted account
//   - [InterpreterResolver] reads the server's interpreter line
//
// The result is a [Launch] that [Helper.Exec] execs. Device nodes and
// file capabilities are only ever written as root, and nothing after the
// switch to the trusted account can regain uid 0.
//
// Teardown enters the jail, unmounts it, drops to the restricted account,
// and can then delete every file that account owns. Ownership is checked
// per entry at the moment of deletion.
//
// The identity of the process is tracked as an explicit [ProcessIdentity]
// value that each switch consumes and replaces. All host access goes
// through [System]; [Host] is the real implementation. Tables of mounts,
// devices, and symlinks ([Tables]) and the account and path names
// ([Settings]) are plain configuration loaded by lib/config.
//
// The package is Linux-only.
package jail
