package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DirArchiver stores payloads under a local directory.
type DirArchiver struct {
	root string
}

// NewDirArchiver creates the root directory if needed.
func NewDirArchiver(root string) (*DirArchiver, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("archive directory not configured")
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &DirArchiver{root: root}, nil
}

// Save writes payload atomically via a temp file and rename.
func (a *DirArchiver) Save(ctx context.Context, id string, at time.Time, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := filepath.Join(a.root, filepath.FromSlash(ObjectName(id, at)))
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("failed to create archive directory for %s: %w", id, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".payload-*")
	if err != nil {
		return fmt.Errorf("failed to archive payload for %s: %w", id, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to archive payload for %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to archive payload for %s: %w", id, err)
	}
	return os.Rename(tmp.Name(), target)
}

// List returns the archive keys of id, oldest first.
func (a *DirArchiver) List(ctx context.Context, id string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(a.root, id))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list archive for %s: %w", id, err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		keys = append(keys, id+"/"+e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

// Load returns the payload stored under key.
func (a *DirArchiver) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, _, err := ParseObjectName(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(a.root, filepath.FromSlash(key))) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return data, nil
}
