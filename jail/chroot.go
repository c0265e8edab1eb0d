// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"fmt"
	"log/slog"
)

// ChrootController changes the process root to the jail. A controller
// enters at most once; there is no way back out.
type ChrootController struct {
	system  System
	logger  *slog.Logger
	entered string
}

// NewChrootController creates a ChrootController.
func NewChrootController(system System, logger *slog.Logger) *ChrootController {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChrootController{system: system, logger: logger}
}

// Enter chroots into jailRoot and moves to its "/". Callers must have
// validated the jail before calling; nothing done so far is undone on
// failure.
func (c *ChrootController) Enter(jailRoot string) error {
	if c.entered != "" {
		return fmt.Errorf("%w: already chrooted into %s", ErrIdentity, c.entered)
	}

	c.logger.Debug("entering chroot", "path", jailRoot)
	if err := c.system.Chroot(jailRoot); err != nil {
		return fmt.Errorf("%w: chroot: %v", ErrPath, err)
	}
	c.entered = jailRoot

	if err := c.system.Chdir("/"); err != nil {
		return fmt.Errorf("%w: chdir / inside %s: %v", ErrPath, jailRoot, err)
	}
	return nil
}

// Entered reports the jail path the controller chrooted into, or "".
func (c *ChrootController) Entered() string { return c.entered }
