// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"errors"
	"strings"
	"testing"
)

func TestMountAllIsIdempotent(t *testing.T) {
	t.Parallel()

	fake := newJailFixture(t)
	mounter := NewMounter(fake, testLogger(t))
	specs := testTables().MountsFor(true)

	if err := mounter.MountAll(testJail, specs); err != nil {
		t.Fatalf("first MountAll: %v", err)
	}
	first := len(fake.callsWithPrefix("mount"))
	if first != len(specs) {
		t.Fatalf("first MountAll issued %d mounts, want %d", first, len(specs))
	}
	for _, spec := range specs {
		if !fake.mounted[testJail+spec.Target] {
			t.Errorf("%s not mounted", spec.Target)
		}
	}

	if err := mounter.MountAll(testJail, specs); err != nil {
		t.Fatalf("second MountAll: %v", err)
	}
	if second := len(fake.callsWithPrefix("mount")); second != first {
		t.Errorf("second MountAll issued %d more mounts, want 0", second-first)
	}
}

func TestMountAllToleratesMountFailure(t *testing.T) {
	t.Parallel()

	fake := newJailFixture(t)
	fake.failures["mount "+testJail+"/proc"] = errors.New("injected mount failure")
	mounter := NewMounter(fake, testLogger(t))

	if err := mounter.MountAll(testJail, testTables().Mounts); err != nil {
		t.Fatalf("MountAll with failing mount = %v, want nil", err)
	}
	if !fake.mounted[testJail+"/dev/pts"] {
		t.Error("mount after the failing one was not attempted")
	}
}

func TestMountAllTargetChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		setup  func(*fakeSystem)
		target string
	}{
		{
			name:   "missing target",
			target: "/missing",
		},
		{
			name:   "target is a file",
			setup:  func(f *fakeSystem) { f.addFile(testJail+"/file", 0, 0, nil) },
			target: "/file",
		},
		{
			name:   "target beyond PATH_MAX",
			target: "/" + strings.Repeat("a", PathMax),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			fake := newJailFixture(t)
			if test.setup != nil {
				test.setup(fake)
			}
			mounter := NewMounter(fake, testLogger(t))

			err := mounter.MountAll(testJail, []MountSpec{{Source: "none", Target: test.target, FSType: "tmpfs"}})
			if !errors.Is(err, ErrPath) {
				t.Fatalf("MountAll = %v, want ErrPath", err)
			}
			if mounts := fake.callsWithPrefix("mount"); len(mounts) != 0 {
				t.Errorf("mount issued despite bad target: %q", mounts)
			}
		})
	}
}

func TestJailPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		root, relative, want string
	}{
		{"/srv/jail1", "/proc", "/srv/jail1/proc"},
		{"/srv/jail1/", "/proc", "/srv/jail1/proc"},
		{"/srv/jail1", "/..", "/srv/jail1/.."},
	}
	for _, test := range tests {
		got, err := jailPath(test.root, test.relative)
		if err != nil {
			t.Errorf("jailPath(%q, %q): %v", test.root, test.relative, err)
			continue
		}
		if got != test.want {
			t.Errorf("jailPath(%q, %q) = %q, want %q", test.root, test.relative, got, test.want)
		}
	}

	root := "/" + strings.Repeat("j", PathMax-6)
	if _, err := jailPath(root, "/proc"); !errors.Is(err, ErrPath) {
		t.Errorf("jailPath over PATH_MAX = %v, want ErrPath", err)
	}
}
