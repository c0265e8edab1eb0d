// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/bureau-foundation/jailhelper/lib/binhash"
	"kernel.org/pub/linux/libs/security/libcap/cap"
)

// CapabilityApplier sets file capabilities listed in a descriptor that
// the jail itself supplies.
type CapabilityApplier struct {
	system     System
	descriptor string
	logger     *slog.Logger
}

// NewCapabilityApplier creates an applier reading descriptor (a path
// inside the jail, such as /etc/chroot-caps).
func NewCapabilityApplier(system System, descriptor string, logger *slog.Logger) *CapabilityApplier {
	if logger == nil {
		logger = slog.Default()
	}
	return &CapabilityApplier{system: system, descriptor: descriptor, logger: logger}
}

// Apply reads the descriptor under jailRoot and applies each record. A
// missing descriptor means there is nothing to apply. Bad records and
// failed applications are logged and skipped; the returned error lists
// all of them. Records applied before a failure stay applied.
func (a *CapabilityApplier) Apply(jailRoot string, identity ProcessIdentity) error {
	if !identity.IsRoot() {
		return fmt.Errorf("%w: file capabilities must be set as root, not %s", ErrIdentity, identity)
	}

	path, err := jailPath(jailRoot, a.descriptor)
	if err != nil {
		return err
	}

	mapped, err := a.system.MapFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		a.logger.Debug("no capability descriptor", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrCapabilityParse, path, err)
	}
	defer mapped.Close()

	data := mapped.Bytes()
	a.logger.Info("applying capability descriptor",
		"path", path,
		"size", len(data),
		"blake3", binhash.FormatDigest(binhash.Sum(data)),
	)

	var errs []error
	applied := 0
	scanner := NewDescriptorScanner(data)
	for scanner.Scan() {
		entry := scanner.Entry()
		if err := a.applyEntry(jailRoot, entry); err != nil {
			a.logger.Warn("capability record failed", "offset", entry.Offset, "path", entry.Path, "capability", entry.Capability, "error", err)
			errs = append(errs, err)
			continue
		}
		applied++
	}
	if err := scanner.Err(); err != nil {
		a.logger.Warn("capability descriptor is malformed", "path", path, "error", err)
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("applying %s (%d records applied): %w", path, applied, errors.Join(errs...))
	}
	a.logger.Debug("capability descriptor applied", "path", path, "records", applied)
	return nil
}

func (a *CapabilityApplier) applyEntry(jailRoot string, entry CapabilityEntry) error {
	if err := checkEntry(entry); err != nil {
		return err
	}
	if _, err := jailPath(jailRoot, entry.Path); err != nil {
		return err
	}

	set, err := cap.FromText(entry.Capability)
	if err != nil {
		return fmt.Errorf("%w: parsing capability %q for %s: %v", ErrCapabilityParse, entry.Capability, entry.Path, err)
	}

	if err := a.system.SetFileCaps(jailRoot, entry.Path, set); err != nil {
		return fmt.Errorf("%w: setting %q on %s: %v", ErrCapabilityParse, entry.Capability, entry.Path, err)
	}
	a.logger.Debug("set file capabilities", "path", entry.Path, "capability", entry.Capability)
	return nil
}
