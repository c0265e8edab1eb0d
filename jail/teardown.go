// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sys/unix"
)

// TeardownReport records what a teardown did. It is returned even when
// teardown fails part way.
type TeardownReport struct {
	// Unmounted lists mount points that are no longer mounted, including
	// ones that were never mounted.
	Unmounted []string
	// UnmountFailures maps mount points to the error that kept them
	// mounted.
	UnmountFailures map[string]error

	// Identity is the identity cleanup ran with.
	Identity ProcessIdentity

	// Removed counts entries deleted. Skipped counts entries left alone
	// because another uid owns them. Failures counts owned entries that
	// could not be removed.
	Removed  int
	Skipped  int
	Failures int
}

// Teardown unmounts the jail and, when deleteFiles is set, removes
// every file inside it owned by the restricted account.
//
// The restricted account is resolved before entering the jail, since
// the jail's own account database is not trusted. Unmount failures are
// recorded and teardown goes on; they make the returned error non-nil
// once everything else has been attempted. Deletion runs as the
// restricted account and only ever removes entries that account owns:
// first inside the scratch directories, then across the whole jail.
func (h *Helper) Teardown(jailRoot string, deleteFiles bool) (*TeardownReport, error) {
	report := &TeardownReport{UnmountFailures: map[string]error{}}

	if _, err := h.preflight(jailRoot); err != nil {
		return report, err
	}
	restricted, err := h.lookupAccount(h.settings.Accounts.Restricted)
	if err != nil {
		return report, err
	}

	h.logger.Debug("tearing down jail", "path", jailRoot, "delete", deleteFiles)
	if err := h.chroot.Enter(jailRoot); err != nil {
		return report, err
	}

	for _, target := range h.unmountTargets() {
		h.logger.Debug("unmounting", "target", target)
		if err := unmountQuiet(h.system, target); err != nil {
			h.logger.Warn("unmount failed", "target", target, "error", err)
			report.UnmountFailures[target] = err
			continue
		}
		report.Unmounted = append(report.Unmounted, target)
	}

	identity, err := h.switcher.SwitchTo(h.identity, restricted)
	if err != nil {
		return report, err
	}
	h.identity = identity
	report.Identity = identity

	if deleteFiles {
		if err := h.removeOwnedFiles(identity.UID, report); err != nil {
			return report, err
		}
	}

	if len(report.UnmountFailures) > 0 {
		var errs []error
		for _, target := range h.unmountTargets() {
			if failure, ok := report.UnmountFailures[target]; ok {
				errs = append(errs, fmt.Errorf("unmount %s: %w", target, failure))
			}
		}
		return report, errors.Join(errs...)
	}
	return report, nil
}

// unmountTargets lists table mount points in reverse order, then /tmp,
// which may carry a tmpfs mounted on request.
func (h *Helper) unmountTargets() []string {
	targets := make([]string, 0, len(h.tables.Mounts)+1)
	for index := len(h.tables.Mounts) - 1; index >= 0; index-- {
		target := h.tables.Mounts[index].Target
		if !slices.Contains(targets, target) {
			targets = append(targets, target)
		}
	}
	if !slices.Contains(targets, TmpfsMount.Target) {
		targets = append(targets, TmpfsMount.Target)
	}
	return targets
}

// unmountQuiet treats "no such path" and "not a mount point" as done.
func unmountQuiet(system System, target string) error {
	err := system.Unmount(target)
	if err == nil || errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EINVAL) {
		return nil
	}
	return err
}

func (h *Helper) removeOwnedFiles(uid int, report *TeardownReport) error {
	h.logger.Debug("deleting scratch files", "uid", uid)
	for _, directory := range h.settings.ScratchDirectories {
		names, err := h.system.ReadDir(directory)
		if err != nil {
			h.logger.Debug("cannot list scratch directory", "path", directory, "error", err)
			continue
		}
		for _, name := range names {
			child := childPath(directory, name)
			if len(child) >= PathMax {
				continue
			}
			info, err := h.system.Lstat(child)
			if err != nil {
				continue
			}
			if info.UID != uid {
				h.logger.Debug("not owned, keeping", "path", child, "owner", info.UID, "uid", uid)
				report.Skipped++
				continue
			}
			h.logger.Debug("deleting", "path", child)
			h.removeTree(child, info, uid, report)
		}
	}

	h.logger.Debug("deleting remaining files owned by uid", "uid", uid)
	names, err := h.system.ReadDir("/")
	if err != nil {
		return fmt.Errorf("%w: sweeping jail root: %v", ErrPath, err)
	}
	h.sweep("/", names, uid, report)
	return nil
}

// sweep walks directory without following symlinks, deleting every
// entry owned by uid and descending into directories owned by others.
func (h *Helper) sweep(directory string, names []string, uid int, report *TeardownReport) {
	for _, name := range names {
		child := childPath(directory, name)
		if len(child) >= PathMax {
			continue
		}
		info, err := h.system.Lstat(child)
		if err != nil {
			continue
		}
		if info.UID == uid {
			h.removeTree(child, info, uid, report)
			continue
		}
		if !info.IsDir() {
			continue
		}
		entries, err := h.system.ReadDir(child)
		if err != nil {
			continue
		}
		h.sweep(child, entries, uid, report)
	}
}

// removeTree removes path and everything below it that uid owns,
// checking the owner of each entry before removing it. Entries owned by
// someone else are kept, which leaves their parent directories in place
// too.
func (h *Helper) removeTree(path string, info FileStat, uid int, report *TeardownReport) {
	if info.UID != uid {
		report.Skipped++
		return
	}

	if info.IsDir() {
		names, err := h.system.ReadDir(path)
		if err != nil {
			h.logger.Debug("cannot list directory", "path", path, "error", err)
		}
		for _, name := range names {
			child := childPath(path, name)
			if len(child) >= PathMax {
				report.Failures++
				continue
			}
			childInfo, err := h.system.Lstat(child)
			if err != nil {
				continue
			}
			h.removeTree(child, childInfo, uid, report)
		}
	}

	if err := h.system.Remove(path); err != nil {
		h.logger.Debug("remove failed", "path", path, "error", err)
		report.Failures++
		return
	}
	report.Removed++
}

func childPath(directory, name string) string {
	if directory == "/" {
		return "/" + name
	}
	return directory + "/" + name
}
