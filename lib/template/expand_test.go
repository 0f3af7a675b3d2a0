// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExpand(t *testing.T) {
	context := map[string]string{
		"SERVER_URL": "https://cohort.example.org",
		"API_KEY":    "k-123",
	}

	out, err := Expand("url: ${SERVER_URL}\nkey: ${API_KEY}\n", context)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := "url: https://cohort.example.org\nkey: k-123\n"
	if out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}

func TestExpand_BareDollarPassesThrough(t *testing.T) {
	out, err := Expand("cmd: echo $HOME ${NAME}", map[string]string{"NAME": "x"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if out != "cmd: echo $HOME x" {
		t.Errorf("out = %q", out)
	}
}

func TestExpand_UnresolvedListsAllMissing(t *testing.T) {
	_, err := Expand("a: ${FIRST}\nb: ${SECOND}\nc: ${FIRST}\n", map[string]string{})
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("err = %v, want ErrUnresolved", err)
	}
	message := err.Error()
	if !strings.Contains(message, "FIRST") || !strings.Contains(message, "SECOND") {
		t.Errorf("error %q does not list both missing names", message)
	}
}

func TestExpand_Deterministic(t *testing.T) {
	context := map[string]string{"A": "1", "B": "2"}
	input := "x: ${A} y: ${B} z: ${A}"

	first, err := Expand(input, context)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	second, err := Expand(input, context)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if first != second {
		t.Error("identical input and context produced different output")
	}
}

func TestBuildContext(t *testing.T) {
	environ := []string{
		"COHORT_SERVER_URL=https://cohort.example.org",
		"COHORT_API_PATH=/api",
		"PATH=/usr/bin",
		"COHORTX=ignored-no-separator-match",
	}

	context, err := BuildContext(environ, "COHORT_")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if context["SERVER_URL"] != "https://cohort.example.org" {
		t.Errorf("SERVER_URL = %q", context["SERVER_URL"])
	}
	if context["API_PATH"] != "/api" {
		t.Errorf("API_PATH = %q", context["API_PATH"])
	}
	if _, ok := context["PATH"]; ok {
		t.Error("unprefixed variable leaked into context")
	}
}

func TestBuildContext_SecretFile(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "db_password")
	if err := os.WriteFile(secretPath, []byte("hunter2\n"), 0600); err != nil {
		t.Fatalf("writing secret: %v", err)
	}

	context, err := BuildContext([]string{"COHORT_DB_PASSWORD_FILE=" + secretPath}, "COHORT_")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if context["DB_PASSWORD"] != "hunter2" {
		t.Errorf("DB_PASSWORD = %q, want %q", context["DB_PASSWORD"], "hunter2")
	}
}

func TestBuildContext_BothFormsIsError(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "s")
	if err := os.WriteFile(secretPath, []byte("v"), 0600); err != nil {
		t.Fatalf("writing secret: %v", err)
	}

	environ := []string{
		"COHORT_DB_PASSWORD=literal",
		"COHORT_DB_PASSWORD_FILE=" + secretPath,
	}
	if _, err := BuildContext(environ, "COHORT_"); err == nil {
		t.Fatal("expected error when both value and _FILE forms are set")
	}

	// Same check with the entries in the other order.
	environ[0], environ[1] = environ[1], environ[0]
	if _, err := BuildContext(environ, "COHORT_"); err == nil {
		t.Fatal("expected error when both value and _FILE forms are set (file first)")
	}
}

func TestBuildContext_MissingSecretFile(t *testing.T) {
	environ := []string{"COHORT_DB_PASSWORD_FILE=" + filepath.Join(t.TempDir(), "nope")}
	if _, err := BuildContext(environ, "COHORT_"); err == nil {
		t.Fatal("expected error for unreadable secret file")
	}
}
