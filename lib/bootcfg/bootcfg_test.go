// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

package bootcfg

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultPerRole(t *testing.T) {
	node := Default(RoleNode)
	if node.BuiltinTemplate != "/usr/local/share/containerboot/node.yaml.tmpl" {
		t.Errorf("node builtin template = %q", node.BuiltinTemplate)
	}
	if len(node.ProvisionDirs) == 0 {
		t.Error("node role has no provision dirs")
	}

	server := Default(RoleServer)
	if server.BuiltinTemplate != "/usr/local/share/containerboot/server.yaml.tmpl" {
		t.Errorf("server builtin template = %q", server.BuiltinTemplate)
	}
	if len(server.ProvisionDirs) != 0 {
		t.Errorf("server role provisions dirs: %v", server.ProvisionDirs)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	env := map[string]string{
		"CONTAINERBOOT_CONFIG":        "/tmp/alt/config.yaml",
		"CONTAINERBOOT_STATE_DIR":     "/tmp/alt/state",
		"CONTAINERBOOT_TEMPLATE_DIRS": "/tmp/a:/tmp/b",
	}
	getenv := func(name string) string { return env[name] }

	settings, err := Load(RoleNode, getenv)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.ConfigPath != "/tmp/alt/config.yaml" {
		t.Errorf("config path = %q", settings.ConfigPath)
	}
	if settings.StateDir != "/tmp/alt/state" {
		t.Errorf("state dir = %q", settings.StateDir)
	}
	if !reflect.DeepEqual(settings.TemplateDirs, []string{"/tmp/a", "/tmp/b"}) {
		t.Errorf("template dirs = %v", settings.TemplateDirs)
	}
	// Untouched fields keep their defaults.
	if settings.HookPath != "/mnt/config/hook.so" {
		t.Errorf("hook path = %q", settings.HookPath)
	}
}

func TestLoad_SettingsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.jsonc")
	content := `{
  // operator notes are allowed here
  "config_path": "/srv/cohort/config.yaml",
  "launch_command": ["cohort-node", "start", "--config", "/srv/cohort/config.yaml"],
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing settings: %v", err)
	}

	env := map[string]string{"CONTAINERBOOT_SETTINGS": path}
	settings, err := Load(RoleNode, func(name string) string { return env[name] })
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.ConfigPath != "/srv/cohort/config.yaml" {
		t.Errorf("config path = %q", settings.ConfigPath)
	}
	if len(settings.LaunchCommand) != 5 {
		t.Errorf("launch command = %v", settings.LaunchCommand)
	}
}

func TestLoad_ExplicitSettingsFileMustExist(t *testing.T) {
	env := map[string]string{
		"CONTAINERBOOT_SETTINGS": filepath.Join(t.TempDir(), "missing.jsonc"),
	}
	if _, err := Load(RoleNode, func(name string) string { return env[name] }); err == nil {
		t.Fatal("expected error for explicitly configured missing settings file")
	}
}

func TestLoad_EnvBeatsSettingsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.jsonc")
	if err := os.WriteFile(path, []byte(`{"state_dir": "/from/file"}`), 0644); err != nil {
		t.Fatalf("writing settings: %v", err)
	}

	env := map[string]string{
		"CONTAINERBOOT_SETTINGS":  path,
		"CONTAINERBOOT_STATE_DIR": "/from/env",
	}
	settings, err := Load(RoleNode, func(name string) string { return env[name] })
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.StateDir != "/from/env" {
		t.Errorf("state dir = %q, want /from/env", settings.StateDir)
	}
}

func TestEffectiveLaunchCommand(t *testing.T) {
	settings := Default(RoleNode)
	argv := settings.EffectiveLaunchCommand(RoleNode)
	if argv[0] != "cohort-node" {
		t.Errorf("argv = %v", argv)
	}
	found := false
	for i, arg := range argv {
		if arg == "--config" && i+1 < len(argv) && argv[i+1] == settings.ConfigPath {
			found = true
		}
	}
	if !found {
		t.Errorf("default node launch command does not pass the config path: %v", argv)
	}

	settings.LaunchCommand = []string{"custom", "--flag"}
	if got := settings.EffectiveLaunchCommand(RoleNode); !reflect.DeepEqual(got, settings.LaunchCommand) {
		t.Errorf("override ignored: %v", got)
	}
}
