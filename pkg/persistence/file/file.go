// Package file provides file-based persistence: one JSON document per row,
// one directory per logical table.
package file

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/taskflow/pkg/persistence"
)

const backend = "file"

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root string
	mu   sync.Mutex
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

// Commit stages every write in a temporary file, then applies renames and
// deletes in batch order. A failure while staging leaves the stored rows untouched.
func (fp *Persistence) Commit(_ context.Context, batch *persistence.Batch) error {
	ops, err := batch.Operations()
	if err != nil {
		return persistence.NewStorageError("Commit", backend, err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	type staged struct {
		tmp, final string // tmp is empty for deletes
	}

	var actions []staged

	cleanup := func(from int) {
		for _, a := range actions[from:] {
			if a.tmp != "" {
				_ = os.Remove(a.tmp)
			}
		}
	}

	for _, op := range ops {
		dir := filepath.Join(fp.root, string(op.Table))
		final := filepath.Join(dir, fileName(op.ID))

		if op.Delete {
			actions = append(actions, staged{final: final})

			continue
		}

		if err := os.MkdirAll(dir, 0o750); err != nil {
			cleanup(0)

			return persistence.NewStorageError("Commit", backend, fmt.Errorf("failed to create %s directory: %w", op.Table, err))
		}

		tmp, err := os.CreateTemp(dir, ".staged-*")
		if err != nil {
			cleanup(0)

			return persistence.NewStorageError("Commit", backend, fmt.Errorf("failed to stage %s %s: %w", op.Table, op.ID, err))
		}

		actions = append(actions, staged{tmp: tmp.Name(), final: final})

		var buf bytes.Buffer
		if err := json.Indent(&buf, op.Data, "", "  "); err != nil {
			buf.Reset()
			buf.Write(op.Data)
		}

		_, err = tmp.Write(buf.Bytes())
		if closeErr := tmp.Close(); err == nil {
			err = closeErr
		}

		if err != nil {
			cleanup(0)

			return persistence.NewStorageError("Commit", backend, fmt.Errorf("failed to write %s %s: %w", op.Table, op.ID, err))
		}
	}

	for i, a := range actions {
		if a.tmp == "" {
			if err := os.Remove(a.final); err != nil && !errors.Is(err, fs.ErrNotExist) {
				cleanup(i)

				return persistence.NewStorageError("Commit", backend, fmt.Errorf("failed to delete %s: %w", a.final, err))
			}

			continue
		}

		if err := os.Rename(a.tmp, a.final); err != nil {
			cleanup(i)

			return persistence.NewStorageError("Commit", backend, fmt.Errorf("failed to move %s into place: %w", a.final, err))
		}
	}

	return nil
}

func (fp *Persistence) Load(_ context.Context) (*persistence.Snapshot, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	rows := make(persistence.Rows)

	for _, table := range persistence.Tables {
		root := os.DirFS(filepath.Join(fp.root, string(table)))

		files, err := fs.Glob(root, "*.json")
		if err != nil {
			return nil, persistence.NewStorageError("Load", backend, fmt.Errorf("failed to list %s files: %w", table, err))
		}

		for _, name := range files {
			data, err := fs.ReadFile(root, name)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}

				return nil, persistence.NewStorageError("Load", backend, fmt.Errorf("failed to read %s: %w", name, err))
			}

			id, err := rowID(name)
			if err != nil {
				return nil, persistence.NewStorageError("Load", backend, err)
			}

			rows.Add(table, id, data)
		}
	}

	snapshot, err := persistence.DecodeSnapshot(rows)
	if err != nil {
		return nil, persistence.NewStorageError("Load", backend, err)
	}

	return snapshot, nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); err != nil {
		return persistence.NewStorageError("HealthCheck", backend, err)
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// fileName encodes a row ID into a portable file name.
func fileName(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id)) + ".json"
}

func rowID(name string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, ".json"))
	if err != nil {
		return "", fmt.Errorf("unexpected file name %s: %w", name, err)
	}

	return string(decoded), nil
}
