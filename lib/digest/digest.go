// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

// Package digest computes BLAKE3 digests of files. The bootstrap
// records the digest of the resolved configuration in the setup marker
// and in the pre-exec boot-state record, which lets an operator verify
// that the document on disk is the one the marker describes and that
// re-resolving an identical template produced identical bytes.
package digest

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// HashFile computes the BLAKE3 digest of the file at path. The file is
// streamed through the hash in chunks so memory use is constant
// regardless of file size.
func HashFile(path string) ([32]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return [32]byte{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	var out [32]byte
	copy(out[:], hasher.Sum(nil))
	return out, nil
}

// Format returns the hex encoding of a digest. This is the canonical
// form used in marker files, boot-state records, and log output.
func Format(d [32]byte) string {
	return hex.EncodeToString(d[:])
}

// Parse decodes a hex-encoded digest string. Returns an error if the
// string is not a 64-character hex encoding of 32 bytes.
func Parse(s string) ([32]byte, error) {
	var out [32]byte
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != 32 {
		return out, fmt.Errorf("digest is %d bytes, want 32", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}
