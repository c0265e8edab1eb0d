// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"fmt"
	"log/slog"
	"strings"
)

// jailPath joins a path relative to the jail root onto the jail
// directory. The result must fit in PATH_MAX including the terminator.
func jailPath(root, relative string) (string, error) {
	joined := strings.TrimSuffix(root, "/") + relative
	if len(joined) >= PathMax {
		return "", fmt.Errorf("%w: %s%s is longer than PATH_MAX", ErrPath, root, relative)
	}
	return joined, nil
}

// Mounter applies mount tables to a jail.
type Mounter struct {
	system System
	logger *slog.Logger
}

// NewMounter creates a Mounter.
func NewMounter(system System, logger *slog.Logger) *Mounter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mounter{system: system, logger: logger}
}

// MountAll mounts every spec under jailRoot. A target that is missing
// or not a directory fails the whole operation. Targets that are
// already mount points are skipped, and a failed mount is only logged,
// so running MountAll again on a provisioned jail succeeds.
func (m *Mounter) MountAll(jailRoot string, specs []MountSpec) error {
	for _, spec := range specs {
		target, err := jailPath(jailRoot, spec.Target)
		if err != nil {
			return err
		}

		info, err := m.system.Stat(target)
		if err != nil {
			return fmt.Errorf("%w: mount target %s: %v", ErrPath, target, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: mount target %s is not a directory", ErrPath, target)
		}

		mounted, err := m.system.Mounted(target)
		if err != nil {
			m.logger.Debug("cannot tell whether target is mounted, mounting anyway", "target", target, "error", err)
		}
		if mounted {
			m.logger.Debug("already mounted", "target", target, "fstype", spec.FSType)
			continue
		}

		m.logger.Debug("mounting", "source", spec.Source, "target", target, "fstype", spec.FSType, "options", spec.Options)
		if err := m.system.Mount(spec.Source, target, spec.FSType, spec.Options); err != nil {
			m.logger.Warn("mount failed", "source", spec.Source, "target", target, "fstype", spec.FSType, "error", err)
		}
	}
	return nil
}
