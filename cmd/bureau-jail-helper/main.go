// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/jailhelper/jail"
	"github.com/bureau-foundation/jailhelper/lib/config"
	"github.com/bureau-foundation/jailhelper/lib/process"
	"github.com/bureau-foundation/jailhelper/lib/version"
)

const usageExitCode = 2

func main() {
	process.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options is the parsed command line.
type options struct {
	jailRoot string
	socket   string

	useTmpfs          bool
	noRestricted      bool
	noTagScripts      bool
	applyCapabilities bool
	clean             bool
	unmount           bool
	arch              string
	personality       uint

	verbose     bool
	help        bool
	showVersion bool
}

// teardown reports whether the invocation tears the jail down instead of
// setting it up. --clean implies --unmount.
func (o *options) teardown() bool { return o.clean || o.unmount }

func newFlagSet(opts *options) *pflag.FlagSet {
	flags := pflag.NewFlagSet("bureau-jail-helper", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.BoolVar(&opts.useTmpfs, "tmpfs", false, "mount a tmpfs on the jail's /tmp")
	flags.BoolVar(&opts.noRestricted, "no-chroot-user", false, "run the server as the trusted account instead of the restricted one")
	flags.BoolVar(&opts.noTagScripts, "no-tag-scripts", false, "do not run the jail's tag scripts")
	flags.BoolVar(&opts.applyCapabilities, "chroot-caps", false, "apply the file capabilities listed in the jail's capability descriptor")
	flags.BoolVar(&opts.clean, "clean", false, "unmount the jail and delete files owned by the restricted account")
	flags.BoolVar(&opts.unmount, "unmount", false, "unmount the jail without deleting anything")
	flags.StringVar(&opts.arch, "arch", "", "run the server under the personality of `NAME` (linux32, or the host's own 32-bit name such as i686)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every step at debug level")
	flags.BoolVarP(&opts.help, "help", "h", false, "show this help and exit")
	flags.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	return flags
}

func printUsage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintf(w, "usage: bureau-jail-helper [flags] <jail> [<socket>]\n\n")
	fmt.Fprintf(w, "The socket is required unless --clean or --unmount is given.\n\nflags:\n")
	fmt.Fprint(w, flags.FlagUsages())
}

// parseArgs parses the command line. Every error wraps jail.ErrUsage.
func parseArgs(args []string) (options, *pflag.FlagSet, error) {
	var opts options
	flags := newFlagSet(&opts)
	flags.SetOutput(io.Discard)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.help = true
			return opts, flags, nil
		}
		return opts, flags, fmt.Errorf("%w: %v", jail.ErrUsage, err)
	}
	if opts.help || opts.showVersion {
		return opts, flags, nil
	}

	positional := flags.Args()
	switch {
	case len(positional) == 0:
		return opts, flags, fmt.Errorf("%w: missing jail path", jail.ErrUsage)
	case len(positional) == 1 && !opts.teardown():
		return opts, flags, fmt.Errorf("%w: missing socket path", jail.ErrUsage)
	case len(positional) > 2:
		return opts, flags, fmt.Errorf("%w: unexpected arguments %q", jail.ErrUsage, positional[2:])
	}

	for _, argument := range positional {
		if len(argument) >= jail.PathMax {
			return opts, flags, fmt.Errorf("%w: argument of %d bytes reaches PATH_MAX", jail.ErrUsage, len(argument))
		}
	}
	opts.jailRoot = positional[0]
	if !filepath.IsAbs(opts.jailRoot) {
		return opts, flags, fmt.Errorf("%w: jail path %q must be absolute", jail.ErrUsage, opts.jailRoot)
	}
	if len(positional) == 2 {
		opts.socket = positional[1]
	}

	if opts.arch != "" {
		persona, err := personalityFor(opts.arch)
		if err != nil {
			return opts, flags, err
		}
		opts.personality = persona
	}
	return opts, flags, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, flags, err := parseArgs(args)
	if err != nil {
		printUsage(stderr, flags)
		return process.WithCode(usageExitCode, err)
	}
	if opts.help {
		printUsage(stdout, flags)
		return nil
	}
	if opts.showVersion {
		if opts.verbose {
			fmt.Fprintf(stdout, "bureau-jail-helper %s\n", version.Full())
		} else {
			fmt.Fprintf(stdout, "bureau-jail-helper %s\n", version.Info())
		}
		return nil
	}

	logger := newLogger(stderr, opts.verbose)
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	helperConfig := cfg.HelperConfig()
	helperConfig.Logger = logger

	err = execute(opts, helperConfig, logger)
	if errors.Is(err, jail.ErrUsage) {
		return process.WithCode(usageExitCode, err)
	}
	return err
}

// execute performs the setup or teardown opts selects.
func execute(opts options, helperConfig jail.Config, logger *slog.Logger) error {
	helper, err := jail.New(helperConfig)
	if err != nil {
		return err
	}

	if opts.teardown() {
		report, err := helper.Teardown(opts.jailRoot, opts.clean)
		if report != nil {
			logger.Info("jail torn down",
				"jail", opts.jailRoot,
				"unmounted", len(report.Unmounted),
				"unmount_failures", len(report.UnmountFailures),
				"removed", report.Removed,
				"skipped", report.Skipped,
				"failures", report.Failures,
			)
		}
		return err
	}

	launch, err := helper.Setup(opts.jailRoot, jail.SetupOptions{
		Socket:            opts.socket,
		UseTmpfs:          opts.useTmpfs,
		UseRestricted:     !opts.noRestricted,
		RunTagScripts:     !opts.noTagScripts,
		ApplyCapabilities: opts.applyCapabilities,
		Personality:       opts.personality,
	})
	if err != nil {
		return err
	}
	return helper.Exec(launch)
}
