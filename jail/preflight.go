// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"errors"
	"fmt"
	"io/fs"
)

// Validate checks that the helper may act on jailRoot: it runs with
// effective uid 0, it was invoked by the trusted account (or by root),
// the jail belongs to the trusted account, and the jail's real parent
// is owned by the trusted account with mode exactly 0700. A jail that
// does not exist yet passes.
//
// Validate touches nothing; it only stats.
func (h *Helper) Validate(jailRoot string) error {
	_, err := h.preflight(jailRoot)
	return err
}

func (h *Helper) preflight(jailRoot string) (Account, error) {
	trusted, err := h.lookupAccount(h.settings.Accounts.Trusted)
	if err != nil {
		return Account{}, err
	}

	if h.system.Geteuid() != 0 {
		return Account{}, ErrNotElevated
	}

	uid, gid := h.system.Getuid(), h.system.Getgid()
	if uid == 0 {
		h.logger.Info("already running as root, skipping caller identity check")
	} else if uid != trusted.UID || gid != trusted.GID {
		return Account{}, fmt.Errorf("%w: invoked as uid %d gid %d, trusted account is %s", ErrIdentityMismatch, uid, gid, trusted)
	}

	info, err := h.system.Stat(jailRoot)
	if errors.Is(err, fs.ErrNotExist) {
		h.logger.Debug("jail does not exist yet", "path", jailRoot)
		return trusted, nil
	}
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrPath, err)
	}
	if info.UID != trusted.UID || info.GID != trusted.GID {
		return Account{}, fmt.Errorf("%w: jail %s is owned by %d:%d, want %s", ErrOwnership, jailRoot, info.UID, info.GID, trusted)
	}

	// "<jail>/.." is the real parent even when the last component of
	// jailRoot is a symlink.
	parent, err := jailPath(jailRoot, "/..")
	if err != nil {
		return Account{}, err
	}
	info, err = h.system.Stat(parent)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrPath, err)
	}
	if info.UID != trusted.UID || info.GID != trusted.GID {
		return Account{}, fmt.Errorf("%w: jail parent %s is owned by %d:%d, want %s", ErrOwnership, parent, info.UID, info.GID, trusted)
	}
	if info.Perm() != 0o700 {
		return Account{}, fmt.Errorf("%w: jail parent %s has mode %04o", ErrPermission, parent, info.Perm())
	}

	return trusted, nil
}

func (h *Helper) lookupAccount(name string) (Account, error) {
	account, err := h.system.LookupAccount(name)
	if err != nil {
		return Account{}, fmt.Errorf("%w: looking up account %q: %v", ErrIdentity, name, err)
	}
	return account, nil
}
