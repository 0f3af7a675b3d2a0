// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

// Containerboot-node is the entrypoint of the cohort node container.
// It waits for the upstream server to answer its version endpoint,
// performs the guarded one-time setup (directory provisioning and
// configuration resolution), exports the per-data-source environment,
// loads the operator hook if present, and finally replaces itself with
// the cohort node process. No supervising parent remains after the
// hand-off.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/cohortgrid/containerboot/internal/boot"
	"github.com/cohortgrid/containerboot/lib/bootcfg"
	"github.com/cohortgrid/containerboot/lib/clock"
	"github.com/cohortgrid/containerboot/lib/process"
	"github.com/cohortgrid/containerboot/lib/template"
	"github.com/cohortgrid/containerboot/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	settings, err := bootcfg.Load(bootcfg.RoleNode, os.Getenv)
	if err != nil {
		return err
	}

	var showVersion bool
	flags := pflag.NewFlagSet("containerboot-node", pflag.ContinueOnError)
	flags.StringVar(&settings.ConfigPath, "config", settings.ConfigPath, "path of the resolved configuration document")
	flags.StringVar(&settings.OperatorTemplate, "template", settings.OperatorTemplate, "path of the operator-supplied configuration template")
	flags.StringVar(&settings.BuiltinTemplate, "default-template", settings.BuiltinTemplate, "path of the built-in minimal configuration template")
	flags.StringVar(&settings.StateDir, "state-dir", settings.StateDir, "directory for bootstrap markers (persistent)")
	flags.StringVar(&settings.RunDir, "run-dir", settings.RunDir, "directory for ephemeral runtime state")
	flags.StringVar(&settings.HookPath, "hook", settings.HookPath, "path of the operator hook plugin")
	flags.StringSliceVar(&settings.LaunchCommand, "launch", settings.LaunchCommand, "launch command override (defaults to the cohort node process)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if showVersion {
		fmt.Printf("containerboot-node %s\n", version.Info())
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	substitution, err := template.BuildContext(os.Environ(), bootcfg.SubstitutionPrefix)
	if err != nil {
		return err
	}

	probeURL, err := boot.UpstreamProbeURL(os.Getenv)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootstrap := &boot.Bootstrap{
		Role:     bootcfg.RoleNode,
		Settings: settings,
		Context:  substitution,
		ProbeURL: probeURL,
		Logger:   logger,
		Clock:    clock.Real(),
	}
	return bootstrap.Run(ctx)
}
