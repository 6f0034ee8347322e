// Package repo implements the file-backed repositories of spec.md §4.5:
// standings snapshots, the rounds journal, match records, and player
// histories, each serialized to JSON with atomic replace semantics
// (temp file + rename), grounded on arkeep-io-arkeep's
// agent/internal/connection saveState/loadState pattern.
package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// writeJSONAtomic marshals v and writes it to path via a temp file in the
// same directory followed by an atomic rename, so a crash never leaves a
// torn write behind (spec.md §4.5).
func writeJSONAtomic(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("repo: create dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("repo: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("repo: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("repo: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("repo: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("repo: rename temp file: %w", err)
	}
	ok = true
	return nil
}

// readJSON reads and unmarshals path into v. If the file does not exist,
// it returns false with no error so callers can fall back to a zero value.
func readJSON(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("repo: read file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("repo: corrupted file %s: %w", path, err)
	}
	return true, nil
}
