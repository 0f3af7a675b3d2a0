// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

// Package marker makes one-time setup routines idempotent across
// container restarts. Each routine has a durable marker file under the
// state directory (on the container's writable layer) holding an
// explicit three-state record: no file (the routine never ran),
// "in-progress" (a run started and did not finish), and "finished".
//
// An "in-progress" marker found on entry means a previous bootstrap
// was interrupted mid-setup. That state is never auto-recovered: a
// half-completed setup must not be mistaken for a completed one, and
// re-running it blindly could clobber partially-written output. The
// operator must remove the marker file (and any partial output) to
// allow setup to run again.
//
// Marker files are written atomically (temporary file, fsync, rename,
// parent directory sync) so a reader never observes a half-written
// record. There is no cross-process locking beyond file existence:
// exactly one bootstrap process runs per container instance, and two
// first-time bootstraps racing on the same writable layer are out of
// scope.
package marker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the lifecycle state recorded in a marker file.
type State string

const (
	// InProgress is written before the routine runs. A marker left in
	// this state means the routine was interrupted.
	InProgress State = "in-progress"
	// Finished is written after the routine returns successfully.
	Finished State = "finished"
)

// ErrInterrupted reports that a marker was found "in-progress" on
// entry. This is fatal to the bootstrap and requires operator
// remediation; it is never cleared automatically.
var ErrInterrupted = errors.New("previous setup was interrupted")

// Record is the durable content of a marker file.
type Record struct {
	// Routine is the name of the guarded setup routine.
	Routine string `json:"routine"`

	// State is InProgress or Finished.
	State State `json:"state"`

	// StartedAt is when the routine began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the routine completed. Zero while InProgress.
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// ConfigDigest optionally records the hex BLAKE3 digest of the
	// configuration document the routine produced, so an operator can
	// check whether the file on disk is still the one setup wrote.
	ConfigDigest string `json:"config_digest,omitempty"`
}

// Result reports what RunOnce did.
type Result int

const (
	// Ran means the routine was executed during this call.
	Ran Result = iota
	// AlreadyDone means a finished marker existed and the routine was
	// skipped.
	AlreadyDone
)

// Store keeps marker files in a single directory, one file per
// routine name.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. The directory is created on
// first write, not here, so constructing a Store has no side effects.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the marker file path for a routine name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Read returns the marker record for a routine. When no marker exists,
// the returned error wraps os.ErrNotExist.
func (s *Store) Read(name string) (Record, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return Record{}, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("parsing marker file %s: %w", s.Path(name), err)
	}
	return record, nil
}

// RunOnce executes routine at most once per state directory lifetime.
//
// No marker: an in-progress marker is written, the routine runs, and
// on success the marker is rewritten as finished (carrying the digest
// the routine returned, which may be empty). If the routine fails, the
// marker intentionally stays in-progress and the error propagates.
//
// Finished marker: returns AlreadyDone without invoking the routine.
//
// In-progress marker on entry: returns an error wrapping
// [ErrInterrupted].
//
// The routine returns an optional config digest to record in the
// finished marker.
func (s *Store) RunOnce(name string, routine func() (configDigest string, err error)) (Result, error) {
	record, err := s.Read(name)
	switch {
	case err == nil:
		switch record.State {
		case Finished:
			return AlreadyDone, nil
		case InProgress:
			return 0, fmt.Errorf("marker %s is in-progress: %w; remove the marker file and any partial setup output to retry", s.Path(name), ErrInterrupted)
		default:
			return 0, fmt.Errorf("marker %s has unknown state %q", s.Path(name), record.State)
		}
	case errors.Is(err, os.ErrNotExist):
		// First run.
	default:
		return 0, fmt.Errorf("reading marker for %q: %w", name, err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return 0, fmt.Errorf("creating marker directory: %w", err)
	}

	record = Record{
		Routine:   name,
		State:     InProgress,
		StartedAt: time.Now().UTC(),
	}
	if err := s.write(name, record); err != nil {
		return 0, err
	}

	digest, err := routine()
	if err != nil {
		// The in-progress marker stays in place: the next bootstrap
		// must see the interruption, not silently retry.
		return 0, fmt.Errorf("setup routine %q: %w", name, err)
	}

	record.State = Finished
	record.FinishedAt = time.Now().UTC()
	record.ConfigDigest = digest
	if err := s.write(name, record); err != nil {
		return 0, err
	}
	return Ran, nil
}

// write atomically replaces the marker file for a routine: write to a
// temporary file in the same directory, fsync, rename into place, and
// sync the parent directory so the rename survives power loss.
func (s *Store) write(name string, record Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling marker record: %w", err)
	}
	data = append(data, '\n')

	path := s.Path(name)
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary marker file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary marker file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary marker file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary marker file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming marker file into place: %w", err)
	}

	if parent, err := os.Open(filepath.Dir(path)); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}
