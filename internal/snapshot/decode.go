package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Decode reads a pipeline export. Missing collections decode as empty; a
// document that is not a JSON object is an error.
func Decode(r io.Reader) (*Store, error) {
	var s Store
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	s.Normalize()
	return &s, nil
}

// LoadFile decodes the snapshot stored at path
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Encode writes the store in the export format
func Encode(w io.Writer, s *Store) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}
