// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"fmt"
	"syscall"

	"kernel.org/pub/linux/libs/security/libcap/cap"
)

// PathMax is the kernel's PATH_MAX. Joined jail paths and the final
// command line must stay below it.
const PathMax = 4096

// Mode type bits, matching the kernel's st_mode encoding.
const (
	modeTypeMask  = 0o170000
	modeDirectory = 0o040000
	modeSymlink   = 0o120000
	modeRegular   = 0o100000
	modeCharDev   = 0o020000
	modeBlockDev  = 0o060000
)

// FileStat is the subset of stat(2) the helper decides on.
type FileStat struct {
	UID  int
	GID  int
	Mode uint32
}

// IsDir reports whether the entry is a directory.
func (s FileStat) IsDir() bool { return s.Mode&modeTypeMask == modeDirectory }

// IsSymlink reports whether the entry is a symbolic link (lstat only).
func (s FileStat) IsSymlink() bool { return s.Mode&modeTypeMask == modeSymlink }

// Perm returns the permission and special bits (mode & 07777).
func (s FileStat) Perm() uint32 { return s.Mode & 0o7777 }

// Account is a resolved host account.
type Account struct {
	Name string
	UID  int
	GID  int
}

func (a Account) String() string {
	return fmt.Sprintf("%s(%d:%d)", a.Name, a.UID, a.GID)
}

// ExitStatus is the outcome of a child process that ran to completion
// or was killed.
type ExitStatus struct {
	Code     int
	Signaled bool
	Signal   syscall.Signal
}

// System is every host operation the helper performs. Production code
// uses [Host]; tests substitute a recording fake so that ordering and
// side effects can be asserted without privilege.
//
// Paths are interpreted by the kernel exactly as given: absolute paths
// resolve against the current root, which changes after Chroot.
type System interface {
	Getuid() int
	Getgid() int
	Geteuid() int

	// Setgroups, Setgid and Setuid change the identity of every thread
	// in the process.
	Setgroups(gids []int) error
	Setgid(gid int) error
	Setuid(uid int) error

	// SetKeepCaps toggles PR_SET_KEEPCAPS on every thread.
	SetKeepCaps(keep bool) error
	// SetProcCaps sets the effective and permitted capability sets of
	// every thread to exactly caps; the inheritable set is cleared.
	SetProcCaps(caps []cap.Value) error
	// EffectiveCaps reads back the effective set from the kernel.
	EffectiveCaps() ([]string, error)

	LookupAccount(name string) (Account, error)

	Stat(path string) (FileStat, error)
	Lstat(path string) (FileStat, error)
	// ReadDir lists entry names, excluding "." and "..".
	ReadDir(path string) ([]string, error)
	// Remove unlinks a file or removes an empty directory.
	Remove(path string) error
	// Unlink removes a non-directory entry.
	Unlink(path string) error
	Mknod(path string, mode uint32, major, minor uint32) error
	Symlink(target, link string) error
	Umask(mask int) int

	Mounted(path string) (bool, error)
	Mount(source, target, fstype, options string) error
	// Unmount detaches a mount point; the raw errno is returned.
	Unmount(path string) error

	Chroot(path string) error
	Chdir(path string) error

	// MapFile reads a whole file into a private snapshot. The caller must
	// Close it.
	MapFile(path string) (*MappedFile, error)
	// ReadHead reads at most limit bytes from the start of a file.
	ReadHead(path string, limit int) ([]byte, error)
	// SetFileCaps writes file capabilities to relative, resolved inside
	// root so that ".." and symlinks cannot leave it.
	SetFileCaps(root, relative string, caps *cap.Set) error

	// SetPersonality switches the process execution domain.
	SetPersonality(persona uint) error

	// Run starts argv with env, waits for it, and reports how it ended.
	// The error is non-nil only when the child could not be started or
	// waited for.
	Run(argv, env []string) (ExitStatus, error)
	// Exec replaces the process image. It returns only on failure.
	Exec(argv, env []string) error
}
