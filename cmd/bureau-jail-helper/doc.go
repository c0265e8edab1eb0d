// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-jail-helper prepares and tears down build chroots on behalf of
// the rmake build service. It is installed setuid root and may only be
// invoked by the trusted account named in its configuration.
//
// Setup mounts the jail's filesystems, creates its device nodes and
// symlinks, optionally applies the file capabilities the jail asks for,
// drops to the trusted account keeping only the capabilities needed to
// chroot and switch users, enters the jail, runs its tag scripts, drops
// to the restricted account, and execs the jail's build server on the
// given socket:
//
//	bureau-jail-helper [--tmpfs] [--chroot-caps] <jail> <socket>
//
// Teardown enters the jail, unmounts everything setup mounted, and with
// --clean deletes the files the restricted account left behind:
//
//	bureau-jail-helper --clean <jail>
//	bureau-jail-helper --unmount <jail>
//
// Configuration is read from /etc/bureau/jail-helper.yaml when that file
// is owned by root and not writable by anyone else; see lib/config.
package main
