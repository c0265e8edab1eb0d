// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"kernel.org/pub/linux/libs/security/libcap/cap"
)

// SetupCapabilities is the only capability set kept once the helper
// leaves root: enough to chroot and to make the final identity switch.
var SetupCapabilities = []cap.Value{cap.SYS_CHROOT, cap.SETUID, cap.SETGID}

// ProcessIdentity is the identity the process currently runs with. It
// is produced by the Switcher and handed to every component that cares
// about privilege; nothing reads the identity from the kernel behind
// its back.
type ProcessIdentity struct {
	UID    int
	GID    int
	// Groups is the supplementary group list. A switch always leaves it
	// empty; nil means it was inherited and never changed.
	Groups []int
	// Retained lists capabilities kept across a switch away from root.
	// It is empty for root (which holds everything) and for a fully
	// dropped identity.
	Retained []cap.Value
}

// CurrentIdentity describes a freshly started setuid helper: the
// effective uid is what matters for privilege.
func CurrentIdentity(system System) ProcessIdentity {
	return ProcessIdentity{UID: system.Geteuid(), GID: system.Getgid()}
}

// IsRoot reports whether the identity is uid 0.
func (p ProcessIdentity) IsRoot() bool { return p.UID == 0 }

// Retains reports whether capability value is kept by this identity.
func (p ProcessIdentity) Retains(value cap.Value) bool {
	return slices.Contains(p.Retained, value)
}

// CanSwitch reports whether the identity still has the authority to
// change uid and gid.
func (p ProcessIdentity) CanSwitch() bool {
	return p.IsRoot() || (p.Retains(cap.SETUID) && p.Retains(cap.SETGID))
}

func (p ProcessIdentity) String() string {
	if len(p.Retained) == 0 {
		return fmt.Sprintf("uid=%d gid=%d", p.UID, p.GID)
	}
	names := make([]string, len(p.Retained))
	for index, value := range p.Retained {
		names[index] = value.String()
	}
	return fmt.Sprintf("uid=%d gid=%d caps=%s", p.UID, p.GID, strings.Join(names, ","))
}

// Switcher performs identity transitions. Each transition clears the
// supplementary groups, then sets the gid, then the uid: the groups and
// gid must be fixed while the process still holds the authority to
// change them.
type Switcher struct {
	system System
	logger *slog.Logger
}

// NewSwitcher creates a Switcher.
func NewSwitcher(system System, logger *slog.Logger) *Switcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Switcher{system: system, logger: logger}
}

// SwitchTo moves the process to target and drops every capability.
// Switching to uid 0 is only possible from root.
func (s *Switcher) SwitchTo(current ProcessIdentity, target Account) (ProcessIdentity, error) {
	if err := s.checkTransition(current, target); err != nil {
		return current, err
	}

	if err := s.setIdentity(target); err != nil {
		return current, err
	}

	if len(current.Retained) > 0 {
		// Capabilities kept by an earlier retaining switch survive a
		// non-root to non-root uid change, so they are cleared here.
		if err := s.system.SetProcCaps(nil); err != nil {
			return current, fmt.Errorf("%w: clearing retained capabilities as %s: %v", ErrIdentity, target, err)
		}
		if err := s.system.SetKeepCaps(false); err != nil {
			return current, fmt.Errorf("%w: resetting keep-caps: %v", ErrIdentity, err)
		}
	}

	next := ProcessIdentity{UID: target.UID, GID: target.GID, Groups: []int{}}
	s.logger.Debug("switched identity", "from", current.String(), "to", next.String(), "account", target.Name)
	return next, nil
}

// SwitchRetaining moves the process from root to target while keeping
// exactly the capabilities in keep. The kernel clears the capability
// sets when the last root uid goes away, so keep-caps is requested
// immediately before the switch and the sets are re-asserted right
// after it, then read back.
func (s *Switcher) SwitchRetaining(current ProcessIdentity, target Account, keep []cap.Value) (ProcessIdentity, error) {
	if !current.IsRoot() {
		return current, fmt.Errorf("%w: capabilities can only be retained when switching away from root (current %s)", ErrIdentity, current)
	}
	if err := s.checkTransition(current, target); err != nil {
		return current, err
	}

	if err := s.system.SetKeepCaps(true); err != nil {
		return current, fmt.Errorf("%w: requesting keep-caps: %v", ErrIdentity, err)
	}

	if err := s.setIdentity(target); err != nil {
		return current, err
	}

	if err := s.system.SetProcCaps(keep); err != nil {
		return current, fmt.Errorf("%w: setting retained capabilities as %s: %v", ErrIdentity, target, err)
	}

	next := ProcessIdentity{UID: target.UID, GID: target.GID, Groups: []int{}, Retained: slices.Clone(keep)}
	if err := s.verifyEffective(next); err != nil {
		return current, err
	}

	s.logger.Debug("switched identity", "from", current.String(), "to", next.String(), "account", target.Name)
	return next, nil
}

func (s *Switcher) checkTransition(current ProcessIdentity, target Account) error {
	if !current.CanSwitch() {
		return fmt.Errorf("%w: identity %s can no longer switch to %s", ErrIdentity, current, target)
	}
	if target.UID == 0 && !current.IsRoot() {
		return fmt.Errorf("%w: refusing to regain root from %s", ErrIdentity, current)
	}
	return nil
}

func (s *Switcher) setIdentity(target Account) error {
	if err := s.system.Setgroups([]int{}); err != nil {
		return fmt.Errorf("%w: setgroups: %v", ErrIdentity, err)
	}
	if err := s.system.Setgid(target.GID); err != nil {
		return fmt.Errorf("%w: setgid(%d): %v", ErrIdentity, target.GID, err)
	}
	if err := s.system.Setuid(target.UID); err != nil {
		return fmt.Errorf("%w: setuid(%d): %v", ErrIdentity, target.UID, err)
	}
	return nil
}

// verifyEffective compares the kernel's effective set with the identity
// that was requested.
func (s *Switcher) verifyEffective(identity ProcessIdentity) error {
	effective, err := s.system.EffectiveCaps()
	if err != nil {
		return fmt.Errorf("%w: reading back capabilities: %v", ErrIdentity, err)
	}

	want := make([]string, len(identity.Retained))
	for index, value := range identity.Retained {
		want[index] = value.String()
	}
	slices.Sort(want)
	got := slices.Clone(effective)
	slices.Sort(got)

	if !slices.Equal(got, want) {
		return fmt.Errorf("%w: effective capabilities are [%s], want [%s]",
			ErrIdentity, strings.Join(got, ","), strings.Join(want, ","))
	}
	return nil
}
