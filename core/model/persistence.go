package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// ArtifactFormatVersion identifies the on-disk artifact layout. Bumped when
// the envelope changes shape.
const ArtifactFormatVersion = "1.0"

// artifactEnvelope wraps a serialized value object with format metadata so a
// loader can reject artifacts written by an incompatible version.
type artifactEnvelope struct {
	FormatVersion string          `json:"format_version"`
	Kind          string          `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
}

// SaveArtifact writes a fitted value object (FitResult, PenaltyPath,
// ConvergenceTrace, ComparisonRow slice, ...) to path as gzip-compressed JSON.
// The kind string is recorded in the envelope and must match on load.
func SaveArtifact(path, kind string, v interface{}) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return WriteArtifact(file, kind, v)
}

// WriteArtifact writes an artifact envelope to w as gzip-compressed JSON.
func WriteArtifact(w io.Writer, kind string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact payload: %w", err)
	}

	env := artifactEnvelope{
		FormatVersion: ArtifactFormatVersion,
		Kind:          kind,
		Payload:       payload,
	}

	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(&env); err != nil {
		_ = zw.Close()
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	return zw.Close()
}

// LoadArtifact reads an artifact written by SaveArtifact into v, verifying
// the format version and kind.
func LoadArtifact(path, kind string, v interface{}) (err error) {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open artifact file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadArtifact(file, kind, v)
}

// ReadArtifact reads an artifact envelope from r into v.
func ReadArtifact(r io.Reader, kind string, v interface{}) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer func() { _ = zr.Close() }()

	var env artifactEnvelope
	if err := json.NewDecoder(zr).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode artifact envelope: %w", err)
	}

	if env.FormatVersion != ArtifactFormatVersion {
		return fmt.Errorf("unsupported artifact format version %q (expected %q)",
			env.FormatVersion, ArtifactFormatVersion)
	}
	if env.Kind != kind {
		return fmt.Errorf("artifact kind mismatch: file contains %q, expected %q", env.Kind, kind)
	}

	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal artifact payload: %w", err)
	}
	return nil
}
