// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"testing"
)

const (
	trustedUID    = 1000
	trustedGID    = 1000
	restrictedUID = 1001
	restrictedGID = 1001
	testJail      = "/srv/jail1"
)

func testTables() Tables {
	return Tables{
		Mounts: []MountSpec{
			{Source: "proc", Target: "/proc", FSType: "proc"},
			{Source: "devpts", Target: "/dev/pts", FSType: "devpts"},
		},
		Devices: []DeviceSpec{
			{Path: "null", Type: DeviceChar, Mode: 0o666, Major: 1, Minor: 3},
			{Path: "zero", Type: DeviceChar, Mode: 0o666, Major: 1, Minor: 5},
			{Path: "console", Type: DeviceChar, Mode: 0o600, Major: 5, Minor: 1},
		},
		Symlinks: []SymlinkSpec{
			{From: "/dev/fd", To: "/proc/self/fd"},
			{From: "/dev/stdin", To: "/proc/self/fd/0"},
		},
	}
}

func testSettings() Settings {
	return Settings{
		Accounts: AccountNames{Trusted: "rmake", Restricted: "rmake-chroot"},
		Paths: Paths{
			CapabilityDescriptor: "/etc/chroot-caps",
			TagScript:            "/root/tagscripts",
			Shell:                "/bin/sh",
			TargetExecutable:     "/usr/bin/conary",
			ServerScript:         "/usr/share/rmake/rmake/worker/chroot/rootserver.py",
		},
		Environment:        []string{"HOME=/tmp", "PATH=/usr/bin:/bin"},
		ScratchDirectories: []string{"/tmp", "/var/tmp"},
	}
}

// newJailFixture builds a fake host with a correctly owned jail at
// testJail, invoked by the trusted account through a setuid binary.
func newJailFixture(t *testing.T) *fakeSystem {
	t.Helper()

	fake := newFakeSystem(trustedUID, trustedGID)
	fake.addAccount("rmake", trustedUID, trustedGID)
	fake.addAccount("rmake-chroot", restrictedUID, restrictedGID)

	fake.addDir("/srv", trustedUID, trustedGID, 0o700)
	fake.addDir(testJail, trustedUID, trustedGID, 0o755)
	for _, directory := range []string{"/proc", "/dev", "/dev/pts", "/etc", "/root", "/bin", "/usr/bin", "/var"} {
		fake.addDir(testJail+directory, 0, 0, 0o755)
	}
	fake.addDir(testJail+"/tmp", 0, 0, 0o1777)
	fake.addDir(testJail+"/var/tmp", 0, 0, 0o1777)
	fake.addFile(testJail+"/usr/bin/conary", 0, 0, []byte("#!/usr/bin/fooshell\nimport conary\n"))
	fake.addFile(testJail+"/bin/sh", 0, 0, []byte("\x7fELF"))
	return fake
}

func newTestHelper(t *testing.T, system System) *Helper {
	t.Helper()
	helper, err := New(Config{
		System:   system,
		Tables:   testTables(),
		Settings: testSettings(),
		Logger:   testLogger(t),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return helper
}
