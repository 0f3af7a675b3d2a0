// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

// Package template resolves the final runtime configuration for a
// container from a precedence-ordered list of candidate sources:
//
//  1. A document already present at the target path. It is used
//     verbatim: no substitution, no writes, and later bootstrap stages
//     treat it as final.
//  2. An operator-supplied template, rendered by substituting
//     ${NAME} references from the substitution context.
//  3. A built-in minimal template, rendered the same way. Selecting it
//     logs a warning: the built-in configuration exists so a
//     development container works out of the box, not for production.
//
// Rendered documents may contain secret values, so they are written
// with a 0077 umask (final mode 0600); the previous umask is restored
// afterwards.
package template

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

// Outcome describes how Resolve produced (or found) the target
// document.
type Outcome int

const (
	// Preexisting means the target already existed and was left
	// untouched.
	Preexisting Outcome = iota
	// RenderedOperator means the operator template was rendered.
	RenderedOperator
	// RenderedBuiltin means the built-in minimal template was
	// rendered.
	RenderedBuiltin
)

// Options configures Resolve.
type Options struct {
	// TargetPath is the final configuration document path.
	TargetPath string

	// OperatorTemplate is the operator-supplied template path. May be
	// absent: absence is the non-fatal fallback case, not an error.
	OperatorTemplate string

	// BuiltinTemplate is the built-in minimal template path.
	BuiltinTemplate string

	// Context is the substitution context (see BuildContext).
	Context map[string]string

	// AuxDirs lists directories whose *.tmpl files are rendered with
	// the same context into AuxOutputDir. Missing directories are
	// skipped.
	AuxDirs []string

	// AuxOutputDir receives rendered auxiliary files. Defaults to
	// "config.d" next to TargetPath.
	AuxOutputDir string

	// Logger records the selected candidate. Defaults to
	// slog.Default.
	Logger *slog.Logger
}

// Result reports what Resolve did.
type Result struct {
	// Outcome is how the target document came to be.
	Outcome Outcome

	// Template is the template file that was rendered. Empty for
	// Preexisting.
	Template string

	// AuxFiles lists the rendered auxiliary file paths, in rendering
	// order. Empty for Preexisting.
	AuxFiles []string
}

// Resolve produces the final configuration document at
// opts.TargetPath. It runs at most once per container lifetime (the
// caller guards it with a marker routine); an operator who wants a
// different configuration must remove both the marker and the file.
func Resolve(opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := os.Stat(opts.TargetPath); err == nil {
		logger.Info("configuration already present, using it verbatim", "path", opts.TargetPath)
		return Result{Outcome: Preexisting}, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Result{}, fmt.Errorf("checking target configuration %s: %w", opts.TargetPath, err)
	}

	outcome, templatePath, err := selectCandidate(opts, logger)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(filepath.Dir(opts.TargetPath), 0755); err != nil {
		return Result{}, fmt.Errorf("creating configuration directory: %w", err)
	}

	// The rendered document may contain secrets. Mask group/other bits
	// for every file created below, and restore the previous umask
	// when done.
	previousMask := unix.Umask(0o077)
	defer unix.Umask(previousMask)

	if err := renderFile(templatePath, opts.TargetPath, opts.Context); err != nil {
		return Result{}, err
	}

	auxFiles, err := renderAuxDirs(opts, logger)
	if err != nil {
		return Result{}, err
	}

	logger.Info("configuration resolved",
		"path", opts.TargetPath,
		"template", templatePath,
		"aux_files", len(auxFiles),
	)
	return Result{Outcome: outcome, Template: templatePath, AuxFiles: auxFiles}, nil
}

// selectCandidate picks the highest-precedence existing template.
func selectCandidate(opts Options, logger *slog.Logger) (Outcome, string, error) {
	if opts.OperatorTemplate != "" {
		if _, err := os.Stat(opts.OperatorTemplate); err == nil {
			return RenderedOperator, opts.OperatorTemplate, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return 0, "", fmt.Errorf("checking operator template %s: %w", opts.OperatorTemplate, err)
		}
	}

	if opts.BuiltinTemplate == "" {
		return 0, "", fmt.Errorf("no operator template at %s and no built-in template configured", opts.OperatorTemplate)
	}
	if _, err := os.Stat(opts.BuiltinTemplate); err != nil {
		return 0, "", fmt.Errorf("no usable configuration template: operator template %s absent, built-in template: %w", opts.OperatorTemplate, err)
	}

	logger.Warn("no operator template found, falling back to the built-in minimal template; the resulting configuration is for development use, not production",
		"operator_template", opts.OperatorTemplate,
		"builtin_template", opts.BuiltinTemplate,
	)
	return RenderedBuiltin, opts.BuiltinTemplate, nil
}

// renderFile expands one template into outputPath. The file is created
// exclusively: the caller has already established that it must not
// exist, and O_EXCL turns any race into an explicit error instead of
// an overwrite.
func renderFile(templatePath, outputPath string, context map[string]string) error {
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("reading template %s: %w", templatePath, err)
	}

	rendered, err := Expand(string(raw), context)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", templatePath, err)
	}

	file, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outputPath, err)
	}
	if _, err := file.WriteString(rendered); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", outputPath, err)
	}
	return nil
}

// renderAuxDirs renders every *.tmpl file from the declared auxiliary
// directories into the auxiliary output directory, alongside the main
// document. Entries are processed in sorted order per directory so the
// result is deterministic.
func renderAuxDirs(opts Options, logger *slog.Logger) ([]string, error) {
	if len(opts.AuxDirs) == 0 {
		return nil, nil
	}

	outputDir := opts.AuxOutputDir
	if outputDir == "" {
		outputDir = filepath.Join(filepath.Dir(opts.TargetPath), "config.d")
	}

	var rendered []string
	for _, dir := range opts.AuxDirs {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading auxiliary template directory %s: %w", dir, err)
		}

		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), ".tmpl") {
				names = append(names, entry.Name())
			}
		}
		sort.Strings(names)

		if len(names) > 0 {
			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return nil, fmt.Errorf("creating auxiliary output directory: %w", err)
			}
		}

		for _, name := range names {
			outputPath := filepath.Join(outputDir, strings.TrimSuffix(name, ".tmpl"))
			if err := renderFile(filepath.Join(dir, name), outputPath, opts.Context); err != nil {
				return nil, err
			}
			rendered = append(rendered, outputPath)
		}
	}
	return rendered, nil
}
