// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"fmt"
	"log/slog"
)

// Config configures a Helper.
type Config struct {
	// System performs host operations. Nil means [Host].
	System   System
	Tables   Tables
	Settings Settings
	Logger   *slog.Logger
}

// Helper prepares, enters, and tears down one jail. A Helper is used
// for a single Setup or Teardown; both enter the jail, and a process
// can only do that once.
type Helper struct {
	system   System
	tables   Tables
	settings Settings
	logger   *slog.Logger

	switcher *Switcher
	chroot   *ChrootController
	identity ProcessIdentity
}

// New validates config and returns a Helper holding private copies of
// its tables and settings.
func New(config Config) (*Helper, error) {
	if err := config.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tables: %w", err)
	}
	if err := config.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	system := config.System
	if system == nil {
		system = Host{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Helper{
		system:   system,
		tables:   config.Tables.Clone(),
		settings: config.Settings.Clone(),
		logger:   logger,
		switcher: NewSwitcher(system, logger),
		chroot:   NewChrootController(system, logger),
		identity: CurrentIdentity(system),
	}, nil
}

// Identity returns the identity the helper currently holds.
func (h *Helper) Identity() ProcessIdentity { return h.identity }

// SetupOptions selects the optional steps of Setup.
type SetupOptions struct {
	// Socket is handed to the jail server.
	Socket string
	// UseTmpfs mounts a tmpfs on the jail's /tmp.
	UseTmpfs bool
	// UseRestricted drops to the restricted account before exec. When
	// false the server runs as the trusted account.
	UseRestricted bool
	// RunTagScripts runs the jail's tag script after chroot.
	RunTagScripts bool
	// ApplyCapabilities applies the jail's capability descriptor.
	ApplyCapabilities bool
	// Personality, when nonzero, is set before any other setup step.
	Personality uint
}

// Launch is the command Setup prepared for exec.
type Launch struct {
	Interpreter string
	Argv        []string
	Env         []string
}

// Setup validates the jail, provisions it, enters it, and drops
// privilege. On success the process is chrooted, holds the final
// identity, and the returned Launch is ready for Exec. Any error aborts
// setup where it happened; nothing is rolled back.
func (h *Helper) Setup(jailRoot string, options SetupOptions) (*Launch, error) {
	if options.Socket == "" {
		return nil, fmt.Errorf("%w: a socket path is required", ErrUsage)
	}

	trusted, err := h.preflight(jailRoot)
	if err != nil {
		return nil, err
	}
	var restricted Account
	if options.UseRestricted {
		if restricted, err = h.lookupAccount(h.settings.Accounts.Restricted); err != nil {
			return nil, err
		}
	}

	if options.Personality != 0 {
		h.logger.Debug("setting personality", "persona", fmt.Sprintf("%#x", options.Personality))
		if err := h.system.SetPersonality(options.Personality); err != nil {
			return nil, fmt.Errorf("setting personality %#x: %w", options.Personality, err)
		}
	}

	mounter := NewMounter(h.system, h.logger)
	if err := mounter.MountAll(jailRoot, h.tables.MountsFor(options.UseTmpfs)); err != nil {
		return nil, err
	}

	// Nodes and capabilities are created as root:root, not as the
	// invoking account that the real ids still name.
	if err := h.switchTo(Account{Name: "root"}); err != nil {
		return nil, err
	}

	if err := NewProvisioner(h.system, h.logger).Provision(jailRoot, h.identity, h.tables); err != nil {
		return nil, err
	}

	if options.ApplyCapabilities {
		applier := NewCapabilityApplier(h.system, h.settings.Paths.CapabilityDescriptor, h.logger)
		if err := applier.Apply(jailRoot, h.identity); err != nil {
			return nil, fmt.Errorf("could not set jail capabilities: %w", err)
		}
	}

	identity, err := h.switcher.SwitchRetaining(h.identity, trusted, SetupCapabilities)
	if err != nil {
		return nil, err
	}
	h.identity = identity

	if err := h.chroot.Enter(jailRoot); err != nil {
		return nil, err
	}

	if options.RunTagScripts {
		runner := NewTagScriptRunner(h.system, h.settings.Paths.Shell, h.settings.Paths.TagScript, h.settings.Environment, h.logger)
		if err := runner.Run(h.identity); err != nil {
			return nil, err
		}
	}

	if options.UseRestricted {
		if err := h.switchTo(restricted); err != nil {
			return nil, err
		}
	}

	interpreter, err := NewInterpreterResolver(h.system, h.logger).Resolve(h.settings.Paths.TargetExecutable)
	if err != nil {
		return nil, fmt.Errorf("cannot determine interpreter: %w", err)
	}
	h.logger.Info("using interpreter", "interpreter", interpreter)

	command := fmt.Sprintf("%s %s start -n --socket %s", interpreter, h.settings.Paths.ServerScript, options.Socket)
	if len(command) >= PathMax {
		return nil, fmt.Errorf("%w: server command line is longer than PATH_MAX", ErrPath)
	}

	return &Launch{
		Interpreter: interpreter,
		Argv:        []string{h.settings.Paths.Shell, "-lc", command},
		Env:         append([]string(nil), h.settings.Environment...),
	}, nil
}

// Exec replaces the process with the launch command. It only returns
// on failure.
func (h *Helper) Exec(launch *Launch) error {
	h.logger.Debug("executing", "argv", launch.Argv, "identity", h.identity.String())
	if err := h.system.Exec(launch.Argv, launch.Env); err != nil {
		return fmt.Errorf("exec %s: %w", launch.Argv[0], err)
	}
	return nil
}

func (h *Helper) switchTo(target Account) error {
	identity, err := h.switcher.SwitchTo(h.identity, target)
	if err != nil {
		return err
	}
	h.identity = identity
	return nil
}
