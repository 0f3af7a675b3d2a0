// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret reads secret values from mounted files (docker and
// kubernetes secret mounts). Values are trimmed of surrounding
// whitespace so that a trailing newline in a mounted secret file does
// not leak into the rendered configuration.
//
// The bootstrap only ever copies secret values into the configuration
// document it renders and then replaces itself with the application
// process, so values are handled as plain strings here.
package secret

import (
	"fmt"
	"os"
	"strings"
)

// ReadFromPath reads a secret from a file path and trims leading and
// trailing whitespace. Returns an error if the file cannot be read or
// the value is empty after trimming: an empty secret is always a
// mount misconfiguration, never a usable value.
func ReadFromPath(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading secret file: %w", err)
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return value, nil
}
