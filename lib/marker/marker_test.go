// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

package marker

import (
	"errors"
	"os"
	"testing"
)

func TestRunOnce_ExecutesExactlyOnce(t *testing.T) {
	store := NewStore(t.TempDir())

	runs := 0
	routine := func() (string, error) {
		runs++
		return "", nil
	}

	result, err := store.RunOnce("setup", routine)
	if err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}
	if result != Ran {
		t.Errorf("first result = %v, want Ran", result)
	}

	result, err = store.RunOnce("setup", routine)
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if result != AlreadyDone {
		t.Errorf("second result = %v, want AlreadyDone", result)
	}
	if runs != 1 {
		t.Errorf("routine ran %d times, want 1", runs)
	}

	record, err := store.Read("setup")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if record.State != Finished {
		t.Errorf("state = %q, want %q", record.State, Finished)
	}
	if record.FinishedAt.IsZero() {
		t.Error("finished marker has zero FinishedAt")
	}
}

func TestRunOnce_FailureLeavesInProgress(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.RunOnce("setup", func() (string, error) {
		return "", errors.New("disk full")
	})
	if err == nil {
		t.Fatal("expected routine failure to propagate, got nil")
	}

	record, err := store.Read("setup")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if record.State != InProgress {
		t.Errorf("state after failure = %q, want %q", record.State, InProgress)
	}

	// A subsequent call must report the interruption, not re-run.
	_, err = store.RunOnce("setup", func() (string, error) {
		t.Fatal("routine re-ran after interrupted setup")
		return "", nil
	})
	if !errors.Is(err, ErrInterrupted) {
		t.Errorf("err = %v, want ErrInterrupted", err)
	}
}

func TestRunOnce_RecordsConfigDigest(t *testing.T) {
	store := NewStore(t.TempDir())

	const hexDigest = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
	if _, err := store.RunOnce("setup", func() (string, error) {
		return hexDigest, nil
	}); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	record, err := store.Read("setup")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if record.ConfigDigest != hexDigest {
		t.Errorf("config digest = %q, want %q", record.ConfigDigest, hexDigest)
	}
}

func TestRunOnce_IndependentRoutines(t *testing.T) {
	store := NewStore(t.TempDir())

	if _, err := store.RunOnce("setup", func() (string, error) { return "", nil }); err != nil {
		t.Fatalf("RunOnce(setup): %v", err)
	}

	ran := false
	if _, err := store.RunOnce("migrate", func() (string, error) {
		ran = true
		return "", nil
	}); err != nil {
		t.Fatalf("RunOnce(migrate): %v", err)
	}
	if !ran {
		t.Error("second routine name did not run")
	}
}

func TestRead_NoMarker(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.Read("setup"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}
