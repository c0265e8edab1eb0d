// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"syscall"

	"github.com/bureau-foundation/jailhelper/jail"
	"gopkg.in/yaml.v3"
)

// SystemFile is the only configuration file the helper reads. It is a
// constant: a setuid program must not let its caller choose its
// configuration.
const SystemFile = "/etc/bureau/jail-helper.yaml"

// Config is the complete helper configuration.
type Config struct {
	// Settings names the accounts, in-jail paths, environment, and
	// scratch directories.
	Settings jail.Settings `yaml:",inline"`

	// Tables lists the mounts, devices, and symlinks set up in the jail.
	Tables jail.Tables `yaml:",inline"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	if err := cfg.decode([]byte(defaultConfigYAML)); err != nil {
		panic(fmt.Sprintf("config: built-in defaults do not parse: %v", err))
	}
	return cfg
}

// Parse applies a YAML document on top of the defaults. Keys not named
// in data keep their default values; a list named in data replaces the
// default list.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads [SystemFile] if it exists and otherwise returns the
// defaults.
func Load() (*Config, error) {
	return load(SystemFile, 0)
}

func load(path string, owner int) (*Config, error) {
	cfg, err := LoadFile(path, owner)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// LoadFile reads configuration from path. The file must be a regular
// file owned by owner and writable by nobody else; it is checked and
// read through the same descriptor.
func LoadFile(path string, owner int) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	if info.Mode().Perm()&0o022 != 0 {
		return nil, fmt.Errorf("%s is writable by group or others (mode %04o)", path, info.Mode().Perm())
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, fmt.Errorf("cannot determine owner of %s", path)
	}
	if int(stat.Uid) != owner {
		return nil, fmt.Errorf("%s is owned by uid %d, want %d", path, stat.Uid, owner)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// decode merges one YAML document into c. Unknown keys are errors, so a
// misspelled key cannot silently leave a default in place.
func (c *Config) decode(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Settings.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Tables.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// HelperConfig converts the configuration into a [jail.Config].
func (c *Config) HelperConfig() jail.Config {
	return jail.Config{
		Settings: c.Settings.Clone(),
		Tables:   c.Tables.Clone(),
	}
}
