// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

// Package hook is the bootstrap's extension point for operator code.
// An operator may place a Go plugin at a well-known path; if present,
// it is loaded into the bootstrap process itself and given a
// [Registry] of named hook points through which it can adjust or
// entirely replace the final process hand-off. The hook is fully
// trusted operator-supplied code — this is a deliberate extension
// point, not a security boundary, and there is no sandboxing.
//
// The plugin must export a symbol named Register with the signature
// func(*hook.Registry). Rather than letting loaded code mutate shared
// bootstrap state ambiently, everything it may change goes through the
// registry's explicit hook points.
package hook

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
)

// LaunchSpec describes the process hand-off the bootstrap is about to
// perform. Hooks may rewrite the argv or add environment entries.
type LaunchSpec struct {
	// Argv is the full command line, argv[0] included.
	Argv []string

	// ExtraEnv entries ("NAME=value") are appended to the inherited
	// environment of the launched process.
	ExtraEnv []string
}

// PreLaunchFunc inspects and may mutate the launch spec before the
// hand-off.
type PreLaunchFunc func(*LaunchSpec) error

// LaunchFunc performs the hand-off itself. A hook that registers one
// takes over the final stage completely; on success it is expected not
// to return, exactly like an exec.
type LaunchFunc func(LaunchSpec) error

// RegisterSymbol is the exported symbol name a hook plugin must
// provide.
const RegisterSymbol = "Register"

// RegisterFunc is the required type of the plugin's Register symbol.
type RegisterFunc = func(*Registry)

// Registry holds the hook points operator code can attach to.
type Registry struct {
	preLaunch []PreLaunchFunc
	launch    LaunchFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// OnPreLaunch appends a callback run (in registration order) against
// the launch spec before the hand-off.
func (r *Registry) OnPreLaunch(fn PreLaunchFunc) {
	r.preLaunch = append(r.preLaunch, fn)
}

// ReplaceLaunch installs a replacement for the default hand-off. The
// last registration wins.
func (r *Registry) ReplaceLaunch(fn LaunchFunc) {
	r.launch = fn
}

// ApplyPreLaunch runs the registered pre-launch callbacks against
// spec. The first error aborts.
func (r *Registry) ApplyPreLaunch(spec *LaunchSpec) error {
	for _, fn := range r.preLaunch {
		if err := fn(spec); err != nil {
			return fmt.Errorf("pre-launch hook: %w", err)
		}
	}
	return nil
}

// Launch performs the hand-off: the registered replacement if any,
// otherwise fallback.
func (r *Registry) Launch(spec LaunchSpec, fallback LaunchFunc) error {
	if r.launch != nil {
		return r.launch(spec)
	}
	return fallback(spec)
}

// Load loads the operator hook plugin at path into the current process
// and invokes its Register function with registry. An absent file is
// the normal case: it is logged at info level and Load returns nil. A
// present but unloadable or malformed plugin is an error — a hook the
// operator supplied but that cannot take effect must not be silently
// ignored.
func Load(path string, registry *Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logger.Info("no bootstrap hook present", "path", path)
		return nil
	} else if err != nil {
		return fmt.Errorf("checking hook %s: %w", path, err)
	}

	loaded, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("loading hook %s: %w", path, err)
	}

	symbol, err := loaded.Lookup(RegisterSymbol)
	if err != nil {
		return fmt.Errorf("hook %s does not export %s: %w", path, RegisterSymbol, err)
	}
	register, ok := symbol.(RegisterFunc)
	if !ok {
		return fmt.Errorf("hook %s: %s has type %T, want func(*hook.Registry)", path, RegisterSymbol, symbol)
	}

	register(registry)
	logger.Info("bootstrap hook loaded", "path", path)
	return nil
}
