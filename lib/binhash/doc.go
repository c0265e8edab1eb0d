// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash computes BLAKE3 content digests for audit logging.
//
// The jail helper logs the digest of every capability descriptor it
// applies, so the log records exactly which grants were installed into
// a jail even after the jail is gone. Version output includes the
// digest of the running helper binary.
//
// The API surface is three functions:
//
//   - [Sum] -- digests an in-memory slice, such as a mapped descriptor
//   - [HashFile] -- streams a file through the hasher with constant
//     memory usage regardless of file size
//   - [FormatDigest] -- the hex encoding used in log output
//
// This package has no dependencies on other Bureau packages.
package binhash
