// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// MountSpec describes one filesystem mounted into the jail.
type MountSpec struct {
	Source string `yaml:"source"`
	// Target is relative to the jail root and starts with "/".
	Target string `yaml:"target"`
	FSType string `yaml:"fstype"`
	// Options uses mount(8) option syntax ("bind", "ro", "mode=0620").
	Options string `yaml:"options,omitempty"`
}

// DeviceType selects the kind of device node to create.
type DeviceType string

const (
	DeviceChar  DeviceType = "char"
	DeviceBlock DeviceType = "block"
)

// FileMode is a permission mode written as an octal string in YAML
// ("0666") so that no YAML integer dialect can reinterpret it.
type FileMode uint32

// UnmarshalYAML parses an octal mode string.
func (m *FileMode) UnmarshalYAML(node *yaml.Node) error {
	value, err := strconv.ParseUint(strings.TrimPrefix(node.Value, "0o"), 8, 32)
	if err != nil {
		return fmt.Errorf("invalid octal mode %q: %w", node.Value, err)
	}
	*m = FileMode(value)
	return nil
}

// MarshalYAML writes the mode back as an octal string.
func (m FileMode) MarshalYAML() (any, error) {
	return fmt.Sprintf("%04o", uint32(m)), nil
}

// DeviceSpec describes one device node created under the jail's /dev.
type DeviceSpec struct {
	// Path is relative to the jail's /dev directory ("null", "pts/0").
	Path  string     `yaml:"path"`
	Type  DeviceType `yaml:"type"`
	Mode  FileMode   `yaml:"mode"`
	Major uint32     `yaml:"major"`
	Minor uint32     `yaml:"minor"`
}

// SymlinkSpec describes one symlink created inside the jail.
type SymlinkSpec struct {
	// From is the link location, relative to the jail root.
	From string `yaml:"from"`
	// To is the link target, stored verbatim.
	To string `yaml:"to"`
}

// Tables holds the mount, device, and symlink tables for one
// invocation. The helper keeps a private copy; callers cannot change
// the tables once setup has started.
type Tables struct {
	Mounts   []MountSpec   `yaml:"mounts"`
	Devices  []DeviceSpec  `yaml:"devices"`
	Symlinks []SymlinkSpec `yaml:"symlinks"`
}

// TmpfsMount is the synthesized entry used when the jail's /tmp is an
// in-memory filesystem.
var TmpfsMount = MountSpec{Source: "tmpfs", Target: "/tmp", FSType: "tmpfs"}

// Clone returns a deep copy of the tables.
func (t Tables) Clone() Tables {
	clone := Tables{}
	if t.Mounts != nil {
		clone.Mounts = make([]MountSpec, len(t.Mounts))
		copy(clone.Mounts, t.Mounts)
	}
	if t.Devices != nil {
		clone.Devices = make([]DeviceSpec, len(t.Devices))
		copy(clone.Devices, t.Devices)
	}
	if t.Symlinks != nil {
		clone.Symlinks = make([]SymlinkSpec, len(t.Symlinks))
		copy(clone.Symlinks, t.Symlinks)
	}
	return clone
}

// MountsFor returns the mount list for a setup run, with the tmpfs
// entry appended when requested.
func (t Tables) MountsFor(useTmpfs bool) []MountSpec {
	mounts := make([]MountSpec, 0, len(t.Mounts)+1)
	mounts = append(mounts, t.Mounts...)
	if useTmpfs {
		mounts = append(mounts, TmpfsMount)
	}
	return mounts
}

// Validate checks the tables for entries the provisioning code would
// mis-handle.
func (t Tables) Validate() error {
	var errs []error

	for index, mount := range t.Mounts {
		if !strings.HasPrefix(mount.Target, "/") {
			errs = append(errs, fmt.Errorf("mounts[%d]: target %q must start with /", index, mount.Target))
		}
		if hasDotDot(mount.Target) {
			errs = append(errs, fmt.Errorf("mounts[%d]: target %q must not contain ..", index, mount.Target))
		}
		if mount.FSType == "" && !strings.Contains(mount.Options, "bind") {
			errs = append(errs, fmt.Errorf("mounts[%d]: fstype is required for non-bind mounts", index))
		}
	}

	for index, device := range t.Devices {
		if device.Path == "" || strings.HasPrefix(device.Path, "/") {
			errs = append(errs, fmt.Errorf("devices[%d]: path %q must be relative to /dev", index, device.Path))
		}
		if strings.Contains(device.Path, "..") {
			errs = append(errs, fmt.Errorf("devices[%d]: path %q must not contain ..", index, device.Path))
		}
		if device.Type != DeviceChar && device.Type != DeviceBlock {
			errs = append(errs, fmt.Errorf("devices[%d]: type must be %q or %q, got %q", index, DeviceChar, DeviceBlock, device.Type))
		}
		if device.Mode&^0o777 != 0 {
			errs = append(errs, fmt.Errorf("devices[%d]: mode %04o has bits outside 0777", index, uint32(device.Mode)))
		}
	}

	for index, link := range t.Symlinks {
		if !strings.HasPrefix(link.From, "/") {
			errs = append(errs, fmt.Errorf("symlinks[%d]: from %q must start with /", index, link.From))
		}
		if hasDotDot(link.From) {
			errs = append(errs, fmt.Errorf("symlinks[%d]: from %q must not contain ..", index, link.From))
		}
		if link.To == "" {
			errs = append(errs, fmt.Errorf("symlinks[%d]: to is required", index))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Settings holds the fixed names and paths the helper consumes.
type Settings struct {
	Accounts AccountNames `yaml:"accounts"`
	Paths    Paths        `yaml:"paths"`

	// Environment is the curated KEY=VALUE environment given to tag
	// scripts and the final workload.
	Environment []string `yaml:"environment"`

	// ScratchDirectories are the world-writable directories searched
	// first during cleanup, as seen from inside the jail.
	ScratchDirectories []string `yaml:"scratch_directories"`
}

// AccountNames names the two accounts the helper works with. They are
// resolved by name on every invocation, never by numeric id.
type AccountNames struct {
	// Trusted is the only account allowed to invoke the helper. It owns
	// the jail and its parent directory.
	Trusted string `yaml:"trusted"`
	// Restricted is the account the workload runs as.
	Restricted string `yaml:"restricted"`
}

// Paths are locations inside the jail (absolute from the jail root).
type Paths struct {
	CapabilityDescriptor string `yaml:"capability_descriptor"`
	TagScript            string `yaml:"tag_script"`
	// Shell runs tag scripts and the final command line.
	Shell string `yaml:"shell"`
	// TargetExecutable is the script whose interpreter line selects the
	// interpreter for the server.
	TargetExecutable string `yaml:"target_executable"`
	ServerScript     string `yaml:"server_script"`
}

// Validate checks the settings.
func (s Settings) Validate() error {
	var errs []error

	if s.Accounts.Trusted == "" {
		errs = append(errs, fmt.Errorf("accounts.trusted is required"))
	}
	if s.Accounts.Restricted == "" {
		errs = append(errs, fmt.Errorf("accounts.restricted is required"))
	}

	paths := map[string]string{
		"paths.capability_descriptor": s.Paths.CapabilityDescriptor,
		"paths.tag_script":            s.Paths.TagScript,
		"paths.shell":                 s.Paths.Shell,
		"paths.target_executable":     s.Paths.TargetExecutable,
		"paths.server_script":         s.Paths.ServerScript,
	}
	for _, name := range []string{
		"paths.capability_descriptor",
		"paths.tag_script",
		"paths.shell",
		"paths.target_executable",
		"paths.server_script",
	} {
		if !strings.HasPrefix(paths[name], "/") {
			errs = append(errs, fmt.Errorf("%s must be an absolute path, got %q", name, paths[name]))
		}
	}

	for _, variable := range s.Environment {
		if !strings.Contains(variable, "=") || strings.HasPrefix(variable, "=") {
			errs = append(errs, fmt.Errorf("environment entry %q must be KEY=VALUE", variable))
		}
	}

	for _, directory := range s.ScratchDirectories {
		if !strings.HasPrefix(directory, "/") {
			errs = append(errs, fmt.Errorf("scratch directory %q must be absolute", directory))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Clone returns a deep copy of the settings.
func (s Settings) Clone() Settings {
	clone := s
	clone.Environment = append([]string(nil), s.Environment...)
	clone.ScratchDirectories = append([]string(nil), s.ScratchDirectories...)
	return clone
}

// hasDotDot reports whether path has a ".." component.
func hasDotDot(path string) bool {
	return slices.Contains(strings.Split(path, "/"), "..")
}
