// Package archive keeps raw collaborator payloads so any check can be
// replayed against the exact bytes that produced it.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/Veraticus/contract-sentinel/internal/service"
)

var (
	_ Store = (*DirArchiver)(nil)
	_ Store = (*MinioArchiver)(nil)
)

// Store is an archiver that can also read back what it saved.
type Store interface {
	service.Archiver
	List(ctx context.Context, id string) ([]string, error)
	Load(ctx context.Context, key string) ([]byte, error)
}

const timestampLayout = "20060102T150405.000000000Z"

// ObjectName returns the key a payload observed at is stored under:
// <id>/<UTC timestamp>.json. Keys of one contract sort chronologically.
func ObjectName(id string, at time.Time) string {
	return path.Join(id, at.UTC().Format(timestampLayout)+".json")
}

// ParseObjectName extracts the contract id and observation time from a key.
func ParseObjectName(name string) (string, time.Time, error) {
	id, file := path.Split(name)
	id = strings.TrimSuffix(id, "/")
	stamp := strings.TrimSuffix(file, ".json")
	if id == "" || stamp == file || strings.ContainsAny(id, `/\.`) {
		return "", time.Time{}, fmt.Errorf("not an archive key: %q", name)
	}
	at, err := time.Parse(timestampLayout, stamp)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("not an archive key: %q: %w", name, err)
	}
	return id, at, nil
}
