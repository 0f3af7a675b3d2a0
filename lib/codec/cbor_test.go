// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMarshalDeterministic(t *testing.T) {
	record := map[string]any{
		"role":   "node",
		"config": "/mnt/config/config.yaml",
		"env":    []string{"DATABASE_URI_PATIENTS", "DATABASE_TYPE_PATIENTS"},
	}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("repeated Marshal of the same record produced different bytes")
	}
}

func TestRoundTrip(t *testing.T) {
	type record struct {
		Role   string `cbor:"role"`
		Config string `cbor:"config"`
	}

	in := record{Role: "server", Config: "/mnt/config/config.yaml"}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out record
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}
