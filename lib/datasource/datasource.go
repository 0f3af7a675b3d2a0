// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

// Package datasource derives environment variables from the data
// sources declared in the resolved configuration. The application
// process, when running dockerized, takes its data-source locations
// from the environment rather than the config file, so the bootstrap
// exports one URI variable and one type variable per declared source
// before the exec hand-off. There is no intermediate file: the
// variables are set in the bootstrap's own environment, which the
// launched process inherits.
//
// Descriptors live in the `databases` list of the main document and
// may additionally be split across YAML files in the auxiliary config
// directory. Labels must be unique across all of them: a duplicate
// would mean one descriptor silently shadowing another, so it is
// rejected before anything is exported.
package datasource

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrDuplicateLabel reports two data-source descriptors sharing a
// label. Fatal; nothing is exported.
var ErrDuplicateLabel = errors.New("duplicate data source label")

// Env variable name prefixes, one per derived assignment.
const (
	URIPrefix  = "DATABASE_URI_"
	TypePrefix = "DATABASE_TYPE_"
)

// Source is one data-source descriptor from the configuration.
type Source struct {
	// Label names the source. It becomes part of the derived
	// environment variable names and must be unique.
	Label string `yaml:"label"`

	// Type tags the source kind (csv, sql, sparql, ...).
	Type string `yaml:"type"`

	// URI locates the source, relative to the container's data mount.
	URI string `yaml:"uri"`
}

// document is the subset of a configuration file this package reads.
type document struct {
	Databases []Source `yaml:"databases"`
}

// Load collects data-source descriptors from the resolved
// configuration document and from every *.yaml / *.yml file in auxDir
// (which may be absent). File order within auxDir is sorted, so the
// collected list is deterministic.
func Load(configPath, auxDir string) ([]Source, error) {
	sources, err := readSources(configPath)
	if err != nil {
		return nil, err
	}

	if auxDir == "" {
		return sources, nil
	}

	entries, err := os.ReadDir(auxDir)
	if errors.Is(err, fs.ErrNotExist) {
		return sources, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading auxiliary config directory %s: %w", auxDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if ext := filepath.Ext(entry.Name()); ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		fromFile, err := readSources(filepath.Join(auxDir, name))
		if err != nil {
			return nil, err
		}
		sources = append(sources, fromFile...)
	}
	return sources, nil
}

// readSources parses the `databases` list of one YAML document. A
// document without the key contributes nothing.
func readSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc.Databases, nil
}

// Derive maps descriptors to environment variable assignments:
// DATABASE_URI_<LABEL> and DATABASE_TYPE_<LABEL>, where <LABEL> is the
// label uppercased with dashes mapped to underscores. The mapping is
// all-or-nothing: a duplicate label (after normalization) or a label
// that does not normalize to a valid variable name fails the whole
// derivation and nothing is returned.
func Derive(sources []Source) (map[string]string, error) {
	mapping := make(map[string]string, 2*len(sources))
	seen := make(map[string]string, len(sources))

	for _, source := range sources {
		normalized, err := normalizeLabel(source.Label)
		if err != nil {
			return nil, err
		}
		if previous, exists := seen[normalized]; exists {
			return nil, fmt.Errorf("%w: %q and %q both normalize to %s", ErrDuplicateLabel, previous, source.Label, normalized)
		}
		seen[normalized] = source.Label

		mapping[URIPrefix+normalized] = source.URI
		mapping[TypePrefix+normalized] = source.Type
	}
	return mapping, nil
}

// Export writes the derived mapping into the current process
// environment so the exec'd application inherits it.
func Export(mapping map[string]string) error {
	for name, value := range mapping {
		if err := os.Setenv(name, value); err != nil {
			return fmt.Errorf("exporting %s: %w", name, err)
		}
	}
	return nil
}

// normalizeLabel converts a label to its environment variable form.
func normalizeLabel(label string) (string, error) {
	if label == "" {
		return "", fmt.Errorf("data source has an empty label")
	}

	normalized := strings.ToUpper(strings.ReplaceAll(label, "-", "_"))
	for _, r := range normalized {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return "", fmt.Errorf("data source label %q contains %q, which cannot appear in an environment variable name", label, string(r))
		}
	}
	return normalized, nil
}
