// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootcfg holds the bootstrap's own settings: the filesystem
// layout it operates on, the hook path, and the launch command. These
// are not the application configuration (that is what lib/template
// resolves); they are the knobs of the bootstrap process itself.
//
// Settings are layered, lowest priority first:
//
//  1. Built-in defaults per role (documented on [Default]).
//  2. An optional JSONC settings file (comments and trailing commas
//     allowed), by default /etc/containerboot/settings.jsonc.
//  3. CONTAINERBOOT_* environment variables.
//
// Command-line flags, parsed by the entrypoints on top of the loaded
// settings, take final precedence.
package bootcfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// Role selects the per-role defaults and sequencing.
type Role string

const (
	// RoleNode is a node container: it has an upstream server to wait
	// for and data sources to export.
	RoleNode Role = "node"
	// RoleServer is a server container: no upstream, no data sources.
	RoleServer Role = "server"
)

// DefaultSettingsPath is where the optional settings file lives unless
// CONTAINERBOOT_SETTINGS points elsewhere.
const DefaultSettingsPath = "/etc/containerboot/settings.jsonc"

// SubstitutionPrefix is the environment variable prefix that feeds the
// template substitution context (see template.BuildContext). Variables
// with this prefix are operator-facing platform configuration, as
// opposed to the CONTAINERBOOT_* variables configuring the bootstrap
// itself.
const SubstitutionPrefix = "COHORT_"

// Settings is the bootstrap configuration after layering.
type Settings struct {
	// ConfigPath is the resolved configuration document path.
	ConfigPath string `json:"config_path"`

	// OperatorTemplate is the operator-supplied template path.
	OperatorTemplate string `json:"operator_template"`

	// BuiltinTemplate is the built-in minimal template path for this
	// role.
	BuiltinTemplate string `json:"builtin_template"`

	// TemplateDirs lists auxiliary template directories whose *.tmpl
	// files are rendered alongside the main document.
	TemplateDirs []string `json:"template_dirs"`

	// AuxConfigDir receives rendered auxiliary files and is scanned
	// for data-source descriptors.
	AuxConfigDir string `json:"aux_config_dir"`

	// StateDir holds the bootstrap markers, on the container's
	// writable layer so they survive restarts.
	StateDir string `json:"state_dir"`

	// RunDir holds ephemeral runtime state (the boot-state record).
	RunDir string `json:"run_dir"`

	// HookPath is where the operator hook plugin is looked for.
	HookPath string `json:"hook_path"`

	// ProvisionDirs are created (if absent) during guarded setup.
	ProvisionDirs []string `json:"provision_dirs"`

	// LaunchCommand overrides the role's default launch argv when
	// non-empty.
	LaunchCommand []string `json:"launch_command"`
}

// Default returns the built-in settings for a role.
//
// The layout follows the platform's container convention: operator
// material is mounted under /mnt/config, durable node data under
// /mnt/data, and the built-in templates are installed with the
// bootstrap under /usr/local/share/containerboot.
func Default(role Role) Settings {
	settings := Settings{
		ConfigPath:       "/mnt/config/config.yaml",
		OperatorTemplate: "/mnt/config/config.yaml.tmpl",
		BuiltinTemplate:  fmt.Sprintf("/usr/local/share/containerboot/%s.yaml.tmpl", role),
		TemplateDirs:     []string{"/mnt/config/config.d"},
		AuxConfigDir:     "/mnt/config/config.d",
		StateDir:         "/mnt/data/.containerboot",
		RunDir:           "/run/containerboot",
		HookPath:         "/mnt/config/hook.so",
	}
	if role == RoleNode {
		settings.ProvisionDirs = []string{"/mnt/log", "/mnt/data", "/mnt/vpn"}
	}
	return settings
}

// EffectiveLaunchCommand returns the launch argv: the configured
// override when set, otherwise the role's default hand-off to the
// application process with the resolved configuration path.
func (s Settings) EffectiveLaunchCommand(role Role) []string {
	if len(s.LaunchCommand) > 0 {
		return s.LaunchCommand
	}
	switch role {
	case RoleNode:
		return []string{"cohort-node", "start", "--config", s.ConfigPath, "--dockerized"}
	default:
		return []string{"cohort-server", "start", "--config", s.ConfigPath}
	}
}

// Load builds the Settings for a role: defaults, then the optional
// settings file, then environment overrides. getenv is os.Getenv in
// production; tests inject a stub.
func Load(role Role, getenv func(string) string) (Settings, error) {
	settings := Default(role)

	settingsPath := getenv("CONTAINERBOOT_SETTINGS")
	explicit := settingsPath != ""
	if !explicit {
		settingsPath = DefaultSettingsPath
	}
	if err := settings.loadFile(settingsPath, explicit); err != nil {
		return Settings{}, err
	}

	settings.applyEnv(getenv)
	return settings, nil
}

// loadFile merges a JSONC settings file into s. A missing file is an
// error only when the path was set explicitly.
func (s *Settings) loadFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading settings file %s: %w", path, err)
	}

	if err := json.Unmarshal(jsonc.ToJSON(data), s); err != nil {
		return fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays CONTAINERBOOT_* variables.
func (s *Settings) applyEnv(getenv func(string) string) {
	if v := getenv("CONTAINERBOOT_CONFIG"); v != "" {
		s.ConfigPath = v
	}
	if v := getenv("CONTAINERBOOT_TEMPLATE"); v != "" {
		s.OperatorTemplate = v
	}
	if v := getenv("CONTAINERBOOT_DEFAULT_TEMPLATE"); v != "" {
		s.BuiltinTemplate = v
	}
	if v := getenv("CONTAINERBOOT_TEMPLATE_DIRS"); v != "" {
		s.TemplateDirs = splitPathList(v)
	}
	if v := getenv("CONTAINERBOOT_AUX_CONFIG_DIR"); v != "" {
		s.AuxConfigDir = v
	}
	if v := getenv("CONTAINERBOOT_STATE_DIR"); v != "" {
		s.StateDir = v
	}
	if v := getenv("CONTAINERBOOT_RUN_DIR"); v != "" {
		s.RunDir = v
	}
	if v := getenv("CONTAINERBOOT_HOOK"); v != "" {
		s.HookPath = v
	}
	if v := getenv("CONTAINERBOOT_PROVISION_DIRS"); v != "" {
		s.ProvisionDirs = splitPathList(v)
	}
}

// splitPathList splits a colon-separated path list, dropping empty
// elements.
func splitPathList(v string) []string {
	var out []string
	for _, element := range strings.Split(v, string(os.PathListSeparator)) {
		if element != "" {
			out = append(out, element)
		}
	}
	return out
}

// BootStatePath returns the boot-state record path under the run
// directory.
func (s Settings) BootStatePath() string {
	return filepath.Join(s.RunDir, "boot-state.cbor")
}
