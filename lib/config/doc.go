// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the jail helper's YAML configuration.
//
// The built-in defaults ([Default]) name the rmake accounts, the in-jail
// paths, and the mount, device, and symlink tables. A single system file,
// [SystemFile], may override them. Because the helper is installed
// setuid root, the file is only honored when it is owned by root and not
// writable by group or others, and there is no environment variable or
// flag that points the helper at another file. No variable expansion is
// performed.
//
// Key exports:
//
//   - [Config] -- jail.Settings and jail.Tables, inline in one document
//   - [Default] -- the built-in configuration
//   - [Load] -- defaults plus the system file, if present
//   - [LoadFile] and [Parse] -- explicit entry points for tools and tests
package config
