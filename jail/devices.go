// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
)

// provisionUmask is the creation mask restored once device nodes exist.
const provisionUmask = 0o002

// Provisioner creates device nodes and symlinks inside a jail.
type Provisioner struct {
	system System
	logger *slog.Logger
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(system System, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{system: system, logger: logger}
}

// Provision creates every device and then every symlink in tables.
// Device nodes are made with a zero umask so the table modes are exact.
// Either kind of failure aborts provisioning and leaves earlier entries
// in place.
func (p *Provisioner) Provision(jailRoot string, identity ProcessIdentity, tables Tables) error {
	if !identity.IsRoot() {
		return fmt.Errorf("%w: device nodes must be created as root, not %s", ErrIdentity, identity)
	}

	if err := p.createDevices(jailRoot, tables.Devices); err != nil {
		return err
	}
	return p.createSymlinks(jailRoot, tables.Symlinks)
}

func (p *Provisioner) createDevices(jailRoot string, devices []DeviceSpec) error {
	p.system.Umask(0)
	defer p.system.Umask(provisionUmask)

	for _, device := range devices {
		target, err := jailPath(jailRoot, "/dev/"+device.Path)
		if err != nil {
			return err
		}

		if err := p.system.Unlink(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: removing existing %s: %v", ErrDeviceCreation, target, err)
		}

		mode := uint32(device.Mode) & 0o777
		switch device.Type {
		case DeviceChar:
			mode |= modeCharDev
		case DeviceBlock:
			mode |= modeBlockDev
		default:
			return fmt.Errorf("%w: %s has unknown device type %q", ErrDeviceCreation, target, device.Type)
		}

		p.logger.Debug("creating device node", "path", target, "type", device.Type,
			"mode", fmt.Sprintf("%04o", uint32(device.Mode)), "major", device.Major, "minor", device.Minor)
		if err := p.system.Mknod(target, mode, device.Major, device.Minor); err != nil {
			return fmt.Errorf("%w: %s (%d:%d): %v", ErrDeviceCreation, target, device.Major, device.Minor, err)
		}
	}
	return nil
}

func (p *Provisioner) createSymlinks(jailRoot string, symlinks []SymlinkSpec) error {
	for _, link := range symlinks {
		location, err := jailPath(jailRoot, link.From)
		if err != nil {
			return err
		}

		if err := p.system.Remove(location); err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.logger.Debug("could not remove existing entry before linking", "path", location, "error", err)
		}

		p.logger.Debug("creating symlink", "path", location, "target", link.To)
		if err := p.system.Symlink(link.To, location); err != nil {
			return fmt.Errorf("%w: %s -> %s: %v", ErrSymlink, location, link.To, err)
		}
	}
	return nil
}
