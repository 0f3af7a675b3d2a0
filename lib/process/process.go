// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the entrypoint helpers shared by the
// bootstrap binaries: fatal error reporting to stderr before the
// structured logger exists, and replacement of the current process
// image with the application process.
package process

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Fatal writes "error: err" to stderr and exits with code 1. Used in
// main() for errors from run(); every fatal bootstrap cause reaches
// the operator as a distinct message through this single path.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// ExecFunc is the signature of syscall.Exec. The bootstrap binaries
// use syscall.Exec in production and inject a stub in tests, where
// actually replacing the test process would end the test run.
type ExecFunc func(argv0 string, argv []string, envv []string) error

// Replace resolves argv[0] against PATH and replaces the current
// process image with it, passing argv and environ. On success this
// never returns and no supervising parent remains; the application
// process becomes the container's main process. Returns an error only
// if the binary cannot be resolved or the exec itself fails.
func Replace(argv []string, environ []string, execFn ExecFunc) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty launch command")
	}
	if execFn == nil {
		execFn = syscall.Exec
	}

	binary, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("resolving launch binary %q: %w", argv[0], err)
	}

	if err := execFn(binary, argv, environ); err != nil {
		return fmt.Errorf("exec %s: %w", binary, err)
	}
	return nil
}
