// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db_password")
	if err := os.WriteFile(path, []byte("s3cret\n"), 0600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}

	value, err := ReadFromPath(path)
	if err != nil {
		t.Fatalf("ReadFromPath: %v", err)
	}
	if value != "s3cret" {
		t.Errorf("value = %q, want %q", value, "s3cret")
	}
}

func TestReadFromPath_Empty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty")
	if err := os.WriteFile(path, []byte("  \n\n"), 0600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}

	if _, err := ReadFromPath(path); err == nil {
		t.Fatal("expected error for whitespace-only secret, got nil")
	}
}

func TestReadFromPath_Missing(t *testing.T) {
	if _, err := ReadFromPath(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
