// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"github.com/moby/sys/capability"
	"github.com/moby/sys/mount"
	"github.com/moby/sys/mountinfo"
	"golang.org/x/sys/unix"
	"kernel.org/pub/linux/libs/security/libcap/cap"
)

// Host is the System backed by the running kernel.
type Host struct{}

var _ System = Host{}

func (Host) Getuid() int  { return unix.Getuid() }
func (Host) Getgid() int  { return unix.Getgid() }
func (Host) Geteuid() int { return unix.Geteuid() }

// Setgroups, Setgid and Setuid must apply to every thread of the
// process. unix.Setgid and unix.Setuid delegate to the runtime's
// all-threads syscall package versions; unix.Setgroups does not, so it
// is called through syscall directly.

func (Host) Setgroups(gids []int) error { return syscall.Setgroups(gids) }
func (Host) Setgid(gid int) error       { return unix.Setgid(gid) }
func (Host) Setuid(uid int) error       { return unix.Setuid(uid) }

func (Host) SetKeepCaps(keep bool) error {
	var value uintptr
	if keep {
		value = 1
	}
	_, err := cap.Prctlw(unix.PR_SET_KEEPCAPS, value, 0, 0, 0)
	return err
}

func (Host) SetProcCaps(caps []cap.Value) error {
	set := cap.NewSet()
	if len(caps) > 0 {
		if err := set.SetFlag(cap.Permitted, true, caps...); err != nil {
			return err
		}
		if err := set.SetFlag(cap.Effective, true, caps...); err != nil {
			return err
		}
	}
	return set.SetProc()
}

func (Host) EffectiveCaps() ([]string, error) {
	current, err := capability.NewPid2(0)
	if err != nil {
		return nil, fmt.Errorf("reading capabilities of current process: %w", err)
	}
	if err := current.Load(); err != nil {
		return nil, fmt.Errorf("loading capabilities: %w", err)
	}
	var names []string
	for _, known := range capability.ListKnown() {
		if current.Get(capability.EFFECTIVE, known) {
			names = append(names, "cap_"+known.String())
		}
	}
	return names, nil
}

func (Host) LookupAccount(name string) (Account, error) {
	entry, err := user.Lookup(name)
	if err != nil {
		return Account{}, err
	}
	uid, err := strconv.Atoi(entry.Uid)
	if err != nil {
		return Account{}, fmt.Errorf("account %s has non-numeric uid %q", name, entry.Uid)
	}
	gid, err := strconv.Atoi(entry.Gid)
	if err != nil {
		return Account{}, fmt.Errorf("account %s has non-numeric gid %q", name, entry.Gid)
	}
	return Account{Name: name, UID: uid, GID: gid}, nil
}

func (Host) Stat(path string) (FileStat, error) {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return FileStat{}, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	return fileStat(&stat), nil
}

func (Host) Lstat(path string) (FileStat, error) {
	var stat unix.Stat_t
	if err := unix.Lstat(path, &stat); err != nil {
		return FileStat{}, &os.PathError{Op: "lstat", Path: path, Err: err}
	}
	return fileStat(&stat), nil
}

func fileStat(stat *unix.Stat_t) FileStat {
	return FileStat{UID: int(stat.Uid), GID: int(stat.Gid), Mode: uint32(stat.Mode)}
}

func (Host) ReadDir(path string) ([]string, error) {
	directory, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer directory.Close()
	return directory.Readdirnames(-1)
}

func (Host) Remove(path string) error { return os.Remove(path) }

func (Host) Unlink(path string) error {
	if err := unix.Unlink(path); err != nil {
		return &os.PathError{Op: "unlink", Path: path, Err: err}
	}
	return nil
}

func (Host) Mknod(path string, mode uint32, major, minor uint32) error {
	if err := unix.Mknod(path, mode, int(unix.Mkdev(major, minor))); err != nil {
		return &os.PathError{Op: "mknod", Path: path, Err: err}
	}
	return nil
}

func (Host) Symlink(target, link string) error { return os.Symlink(target, link) }

func (Host) Umask(mask int) int { return unix.Umask(mask) }

func (Host) Mounted(path string) (bool, error) { return mountinfo.Mounted(path) }

func (Host) Mount(source, target, fstype, options string) error {
	return mount.Mount(source, target, fstype, options)
}

func (Host) Unmount(path string) error { return unix.Unmount(path, 0) }

func (Host) Chroot(path string) error {
	if err := unix.Chroot(path); err != nil {
		return &os.PathError{Op: "chroot", Path: path, Err: err}
	}
	return nil
}

func (Host) Chdir(path string) error {
	if err := unix.Chdir(path); err != nil {
		return &os.PathError{Op: "chdir", Path: path, Err: err}
	}
	return nil
}

func (Host) MapFile(path string) (*MappedFile, error) { return mapFile(path) }

func (Host) ReadHead(path string, limit int) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buffer := make([]byte, limit)
	count, err := io.ReadFull(file, buffer)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return buffer[:count], nil
}

// SetFileCaps resolves relative with openat2(RESOLVE_IN_ROOT) so the
// kernel pins the lookup under root, then writes the xattr through the
// resulting descriptor's /proc/self/fd link.
func (Host) SetFileCaps(root, relative string, caps *cap.Set) error {
	rootFD, err := unix.Open(root, unix.O_PATH|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return &os.PathError{Op: "open", Path: root, Err: err}
	}
	defer unix.Close(rootFD)

	targetFD, err := unix.Openat2(rootFD, relative, &unix.OpenHow{
		Flags:   unix.O_PATH | unix.O_CLOEXEC,
		Resolve: unix.RESOLVE_IN_ROOT | unix.RESOLVE_NO_MAGICLINKS,
	})
	if err != nil {
		return &os.PathError{Op: "openat2", Path: relative, Err: err}
	}
	defer unix.Close(targetFD)

	return caps.SetFile(fmt.Sprintf("/proc/self/fd/%d", targetFD))
}

func (Host) SetPersonality(persona uint) error {
	if _, _, errno := unix.RawSyscall(unix.SYS_PERSONALITY, uintptr(persona), 0, 0); errno != 0 {
		return errno
	}
	return nil
}

func (Host) Run(argv, env []string) (ExitStatus, error) {
	command := exec.Command(argv[0], argv[1:]...)
	command.Env = env
	command.Stdin = os.Stdin
	command.Stdout = os.Stdout
	command.Stderr = os.Stderr

	err := command.Run()
	if err == nil {
		return ExitStatus{}, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ExitStatus{}, err
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return ExitStatus{Code: exitErr.ExitCode()}, nil
	}
	if status.Signaled() {
		return ExitStatus{Code: -1, Signaled: true, Signal: status.Signal()}, nil
	}
	return ExitStatus{Code: status.ExitStatus()}, nil
}

func (Host) Exec(argv, env []string) error {
	return unix.Exec(argv[0], argv, env)
}
