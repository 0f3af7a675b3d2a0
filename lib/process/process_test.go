// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReplace_ResolvesAndCallsExec(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "cohort-node")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("writing stub binary: %v", err)
	}

	var gotArgv0 string
	var gotArgv []string
	var gotEnv []string
	stub := func(argv0 string, argv []string, envv []string) error {
		gotArgv0 = argv0
		gotArgv = argv
		gotEnv = envv
		return nil
	}

	argv := []string{binary, "start", "--config", "/mnt/config/config.yaml"}
	env := []string{"DATABASE_URI_PATIENTS=/mnt/databases/patients.csv"}
	if err := Replace(argv, env, stub); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	if gotArgv0 != binary {
		t.Errorf("argv0 = %q, want %q", gotArgv0, binary)
	}
	if len(gotArgv) != 4 || gotArgv[1] != "start" {
		t.Errorf("argv = %v", gotArgv)
	}
	if len(gotEnv) != 1 || gotEnv[0] != env[0] {
		t.Errorf("env = %v", gotEnv)
	}
}

func TestReplace_MissingBinary(t *testing.T) {
	err := Replace([]string{"containerboot-no-such-binary-xyzzy"}, nil, func(string, []string, []string) error {
		t.Fatal("exec function called despite unresolvable binary")
		return nil
	})
	if err == nil {
		t.Fatal("expected error for unresolvable binary, got nil")
	}
}

func TestReplace_EmptyArgv(t *testing.T) {
	if err := Replace(nil, nil, nil); err == nil {
		t.Fatal("expected error for empty argv, got nil")
	}
}
