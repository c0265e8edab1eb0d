// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/bureau-foundation/jailhelper/jail"
)

// perLinux32 is PER_LINUX32 from <linux/personality.h>.
const perLinux32 = 0x0008

// archNames lists, per 64-bit GOARCH, the names of its own 32-bit
// variant. linux32 is accepted on every host.
var archNames = map[string][]string{
	"amd64":   {"i386", "i486", "i586", "i686", "x86"},
	"ppc64":   {"ppc", "ppc32"},
	"ppc64le": {"ppc", "ppc32"},
	"s390x":   {"s390"},
	"sparc64": {"sparc", "sparc32"},
}

func personalityFor(arch string) (uint, error) {
	return personalityForArch(runtime.GOARCH, arch)
}

// personalityForArch maps an --arch name to an execution domain on a
// host built for goarch.
func personalityForArch(goarch, arch string) (uint, error) {
	if arch == "linux32" || slices.Contains(archNames[goarch], arch) {
		return perLinux32, nil
	}
	known := append([]string{"linux32"}, archNames[goarch]...)
	return 0, fmt.Errorf("%w: unknown architecture %q for %s (known: %s)", jail.ErrUsage, arch, goarch, strings.Join(known, ", "))
}
