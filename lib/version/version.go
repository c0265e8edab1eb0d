// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"

	"github.com/bureau-foundation/jailhelper/lib/binhash"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

// selfPath is the running binary. A variable so tests can point it at
// a known file.
var selfPath = "/proc/self/exe"

// Info returns a formatted version string suitable for --version output.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full returns detailed version information including the Go version
// and the digest of the running binary.
func Full() string {
	digest := "unavailable"
	if sum, err := SelfDigest(); err == nil {
		digest = sum
	}
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s\n  BLAKE3: %s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH, digest)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// SelfDigest returns the hex BLAKE3 digest of the running binary.
func SelfDigest() (string, error) {
	digest, err := binhash.HashFile(selfPath)
	if err != nil {
		return "", err
	}
	return binhash.FormatDigest(digest), nil
}
