// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"fmt"
	"log/slog"
	"slices"
)

// TagScriptRunner runs the jail's tag script through a login shell.
type TagScriptRunner struct {
	system      System
	shell       string
	script      string
	environment []string
	logger      *slog.Logger
}

// NewTagScriptRunner creates a runner for script, started as
// "<shell> -l <script>" with exactly environment.
func NewTagScriptRunner(system System, shell, script string, environment []string, logger *slog.Logger) *TagScriptRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &TagScriptRunner{
		system:      system,
		shell:       shell,
		script:      script,
		environment: slices.Clone(environment),
		logger:      logger,
	}
}

// Command returns the argv the runner starts.
func (r *TagScriptRunner) Command() []string {
	return []string{r.shell, "-l", r.script}
}

// Run starts the tag script and waits for it. The script runs with the
// capability-limited jail-super identity, never as root.
func (r *TagScriptRunner) Run(identity ProcessIdentity) error {
	if identity.IsRoot() {
		return fmt.Errorf("%w: refusing to run tag scripts as root", ErrIdentity)
	}

	argv := r.Command()
	r.logger.Debug("running tag scripts", "command", argv, "identity", identity.String())

	status, err := r.system.Run(argv, r.environment)
	if err != nil {
		return fmt.Errorf("%w: starting tag scripts: %v", ErrChildProcess, err)
	}
	if status.Signaled {
		return fmt.Errorf("%w: tag scripts exited abnormally with signal %d (%v)", ErrChildProcess, int(status.Signal), status.Signal)
	}
	if status.Code != 0 {
		return fmt.Errorf("%w: tag scripts exited with status %d", ErrChildProcess, status.Code)
	}
	return nil
}
