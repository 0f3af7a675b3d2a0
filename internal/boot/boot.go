// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

// Package boot sequences the bootstrap stages shared by the node and
// server entrypoints: readiness probe (node only), guarded one-time
// setup (directory provisioning and configuration resolution),
// data-source environment export (node only), operator hook loading,
// the pre-exec boot-state record, and finally the hand-off that
// replaces the bootstrap with the application process.
//
// Execution is strictly sequential; each stage completes or fails
// before the next begins, and any failure aborts the whole sequence
// before the application process is launched. There is no rollback of
// already-provisioned directories or files: partial state plus a clear
// halt beats a cleanup that guesses.
package boot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/cohortgrid/containerboot/lib/bootcfg"
	"github.com/cohortgrid/containerboot/lib/clock"
	"github.com/cohortgrid/containerboot/lib/datasource"
	"github.com/cohortgrid/containerboot/lib/digest"
	"github.com/cohortgrid/containerboot/lib/hook"
	"github.com/cohortgrid/containerboot/lib/marker"
	"github.com/cohortgrid/containerboot/lib/probe"
	"github.com/cohortgrid/containerboot/lib/process"
	"github.com/cohortgrid/containerboot/lib/template"
)

// setupRoutine is the marker name guarding one-time setup.
const setupRoutine = "setup"

// Bootstrap carries everything one bootstrap run needs. The zero
// value is not usable; entrypoints fill in the fields from settings,
// flags, and environment.
type Bootstrap struct {
	// Role selects the node or server sequence.
	Role bootcfg.Role

	// Settings is the layered bootstrap configuration.
	Settings bootcfg.Settings

	// Context is the template substitution context.
	Context map[string]string

	// ProbeURL, when non-empty, is probed for readiness before
	// anything else. The node entrypoint sets it; the server has no
	// upstream and leaves it empty.
	ProbeURL string

	// Logger receives structured progress output.
	Logger *slog.Logger

	// Clock drives the probe's inter-attempt waits.
	Clock clock.Clock

	// Exec replaces the process image. nil means syscall.Exec; tests
	// inject a stub.
	Exec process.ExecFunc
}

// Run executes the bootstrap sequence for the configured role. On
// success it does not return: the process image has been replaced by
// the application process. Every returned error is fatal and carries
// a cause-specific message.
func (b *Bootstrap) Run(ctx context.Context) error {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if b.ProbeURL != "" {
		prober := &probe.Prober{Clock: b.Clock, Logger: logger}
		if err := prober.Wait(ctx, b.ProbeURL); err != nil {
			return err
		}
	}

	store := marker.NewStore(b.Settings.StateDir)
	result, err := store.RunOnce(setupRoutine, func() (string, error) {
		return b.setup(logger)
	})
	if err != nil {
		return err
	}
	switch result {
	case marker.AlreadyDone:
		logger.Info("setup already completed on a previous boot, skipping")
	case marker.Ran:
		logger.Info("setup completed")
	}

	var exportedNames []string
	if b.Role == bootcfg.RoleNode {
		exportedNames, err = b.exportDataSourceEnv(logger)
		if err != nil {
			return err
		}
	}

	registry := hook.NewRegistry()
	if err := hook.Load(b.Settings.HookPath, registry, logger); err != nil {
		return err
	}

	spec := hook.LaunchSpec{Argv: b.Settings.EffectiveLaunchCommand(b.Role)}
	if err := registry.ApplyPreLaunch(&spec); err != nil {
		return err
	}

	if err := b.writeBootState(store, spec, exportedNames); err != nil {
		return err
	}

	logger.Info("handing off to application process", "argv", spec.Argv)
	return registry.Launch(spec, func(spec hook.LaunchSpec) error {
		return process.Replace(spec.Argv, append(os.Environ(), spec.ExtraEnv...), b.Exec)
	})
}

// setup is the guarded one-time routine: provision the working
// directories, resolve the configuration, and report the resolved
// document's digest for the finished marker.
func (b *Bootstrap) setup(logger *slog.Logger) (string, error) {
	for _, dir := range b.Settings.ProvisionDirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("provisioning %s: %w", dir, err)
		}
	}

	_, err := template.Resolve(template.Options{
		TargetPath:       b.Settings.ConfigPath,
		OperatorTemplate: b.Settings.OperatorTemplate,
		BuiltinTemplate:  b.Settings.BuiltinTemplate,
		Context:          b.Context,
		AuxDirs:          b.Settings.TemplateDirs,
		AuxOutputDir:     b.Settings.AuxConfigDir,
		Logger:           logger,
	})
	if err != nil {
		return "", err
	}

	configDigest, err := digest.HashFile(b.Settings.ConfigPath)
	if err != nil {
		return "", err
	}
	return digest.Format(configDigest), nil
}

// exportDataSourceEnv derives and exports the per-data-source
// environment variables, returning the sorted exported names.
func (b *Bootstrap) exportDataSourceEnv(logger *slog.Logger) ([]string, error) {
	sources, err := datasource.Load(b.Settings.ConfigPath, b.Settings.AuxConfigDir)
	if err != nil {
		return nil, err
	}

	mapping, err := datasource.Derive(sources)
	if err != nil {
		return nil, err
	}
	if err := datasource.Export(mapping); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(mapping))
	for name := range mapping {
		names = append(names, name)
	}
	sort.Strings(names)
	logger.Info("data source environment exported", "sources", len(sources), "variables", names)
	return names, nil
}
