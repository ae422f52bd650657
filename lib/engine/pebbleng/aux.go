package pebbleng

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"shardkv/lib/engine"
)

// Auxiliary records are plain files stored next to the pebble data. They hold
// small metadata that must be readable and writable even when the database
// itself cannot be opened, so recovery tooling accesses them through the
// path-level functions below instead of an open engine.

// auxFile maps a logical auxiliary path to a file under the store directory.
func auxFile(dir, path string) string {
	return filepath.Join(dir, filepath.FromSlash(path))
}

// ReadAuxRecord reads an auxiliary record of the store at dir. Absent records
// yield engine.ErrNotFound.
func ReadAuxRecord(dir, path string) (string, error) {
	data, err := os.ReadFile(auxFile(dir, path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", engine.ErrNotFound
		}
		return "", errors.Wrapf(err, "pebbleng: read aux %s", path)
	}
	return string(data), nil
}

// WriteAuxRecord writes an auxiliary record of the store at dir, creating
// parent directories as needed.
func WriteAuxRecord(dir, path, contents string) error {
	full := auxFile(dir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return errors.Wrapf(err, "pebbleng: write aux %s", path)
	}
	return errors.Wrapf(os.WriteFile(full, []byte(contents), 0644),
		"pebbleng: write aux %s", path)
}

// RemoveAuxRecord removes an auxiliary record of the store at dir. Removing
// an absent record is a no-op.
func RemoveAuxRecord(dir, path string) error {
	err := os.Remove(auxFile(dir, path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "pebbleng: remove aux %s", path)
	}
	return nil
}

// StoreExists reports whether a pebble database already lives at dir.
func StoreExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "CURRENT"))
	return err == nil
}
