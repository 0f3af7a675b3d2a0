// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

package boot

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cohortgrid/containerboot/lib/bootcfg"
	"github.com/cohortgrid/containerboot/lib/codec"
	"github.com/cohortgrid/containerboot/lib/hook"
	"github.com/cohortgrid/containerboot/lib/marker"
)

// StateRecord is the boot-state record written immediately before the
// exec hand-off. It is a diagnostic snapshot: which configuration the
// application was launched against, what was exported into its
// environment, and with what command line. Encoded as deterministic
// CBOR so identical boots produce byte-identical records apart from
// the timestamp.
type StateRecord struct {
	Role         string    `cbor:"role"`
	ConfigPath   string    `cbor:"config_path"`
	ConfigDigest string    `cbor:"config_digest"`
	ExportedEnv  []string  `cbor:"exported_env,omitempty"`
	LaunchArgv   []string  `cbor:"launch_argv"`
	BootedAt     time.Time `cbor:"booted_at"`
}

// ReadStateRecord reads a boot-state record, for tests and diagnostic
// tooling.
func ReadStateRecord(path string) (StateRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StateRecord{}, err
	}
	var record StateRecord
	if err := codec.Unmarshal(data, &record); err != nil {
		return StateRecord{}, fmt.Errorf("parsing boot-state record %s: %w", path, err)
	}
	return record, nil
}

// writeBootState writes the pre-exec boot-state record to the run
// directory. The write is atomic (temporary file plus rename) so a
// reader never sees a partial record.
func (b *Bootstrap) writeBootState(store *marker.Store, spec hook.LaunchSpec, exportedNames []string) error {
	record := StateRecord{
		Role:        string(b.Role),
		ConfigPath:  b.Settings.ConfigPath,
		ExportedEnv: exportedNames,
		LaunchArgv:  spec.Argv,
		BootedAt:    time.Now().UTC(),
	}
	if setupMarker, err := store.Read(setupRoutine); err == nil {
		record.ConfigDigest = setupMarker.ConfigDigest
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading setup marker for boot state: %w", err)
	}

	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling boot state: %w", err)
	}

	if err := os.MkdirAll(b.Settings.RunDir, 0755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	path := b.Settings.BootStatePath()
	temporaryPath := path + ".tmp"
	if err := os.WriteFile(temporaryPath, data, 0600); err != nil {
		return fmt.Errorf("writing boot state: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming boot state into place: %w", err)
	}
	return nil
}

// UpstreamProbeURL builds the node's readiness probe URL from the
// operator-facing environment: COHORT_SERVER_URL (required),
// COHORT_SERVER_PORT and COHORT_SERVER_API_PATH (optional). The
// upstream's version endpoint serves as the liveness path.
func UpstreamProbeURL(getenv func(string) string) (string, error) {
	serverURL := getenv(bootcfg.SubstitutionPrefix + "SERVER_URL")
	if serverURL == "" {
		return "", fmt.Errorf("upstream server URL is required for the node role (set %sSERVER_URL)", bootcfg.SubstitutionPrefix)
	}
	serverURL = strings.TrimSuffix(serverURL, "/")

	if port := getenv(bootcfg.SubstitutionPrefix + "SERVER_PORT"); port != "" {
		serverURL += ":" + port
	}
	if apiPath := getenv(bootcfg.SubstitutionPrefix + "SERVER_API_PATH"); apiPath != "" {
		serverURL += "/" + strings.Trim(apiPath, "/")
	}
	return serverURL + "/version", nil
}
