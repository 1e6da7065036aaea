package keyframe

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Encode serializes a sequence in the exchange format: a JSON array of
// {"position":{"x","y","z"},"heading","pitch","roll"} objects.
func Encode(seq []Keyframe) ([]byte, error) {
	if seq == nil {
		seq = []Keyframe{}
	}
	return json.Marshal(seq)
}

// EncodeIndent is Encode with two-space indentation, the export layout.
func EncodeIndent(seq []Keyframe) ([]byte, error) {
	if seq == nil {
		seq = []Keyframe{}
	}
	return json.MarshalIndent(seq, "", "  ")
}

// Decode parses the exchange format. Any entry with a missing or
// non-numeric field fails the whole payload with ErrMalformedImport.
func Decode(data []byte) ([]Keyframe, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}

	seq := make([]Keyframe, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &seq[i]); err != nil {
			return nil, fmt.Errorf("%w: keyframe %d: %v", ErrMalformedImport, i, err)
		}
	}
	return seq, nil
}

// Read decodes a sequence from r.
func Read(r io.Reader) ([]Keyframe, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyframes: %w", err)
	}
	return Decode(data)
}

// ReadFile decodes a sequence from a JSON file on disk.
func ReadFile(path string) ([]Keyframe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyframe file: %w", err)
	}
	return Decode(data)
}

// WriteFile writes a sequence to path in the export layout.
func WriteFile(path string, seq []Keyframe) error {
	data, err := EncodeIndent(seq)
	if err != nil {
		return fmt.Errorf("failed to encode keyframes: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}
