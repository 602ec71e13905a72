package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Veraticus/contract-sentinel/internal/model"
)

// ErrDumpNotFound is returned when no dump file exists for an id.
var ErrDumpNotFound = errors.New("no dump for id")

var dumpIDPattern = regexp.MustCompile(`^\d+$`)

// DumpExtensions are the file types FileTransport reads.
var DumpExtensions = []string{".json", ".yaml", ".yml"}

// FileTransport serves records from a directory of collaborator dumps named
// <id>.json, <id>.yaml or <id>.yml, at any depth.
type FileTransport struct {
	fsys fs.FS
	Dir  string
}

// NewFileTransport creates a transport rooted at dir.
func NewFileTransport(dir string) (*FileTransport, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("dump directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dump directory %s is not a directory", dir)
	}
	return &FileTransport{Dir: dir, fsys: os.DirFS(dir)}, nil
}

// Fetch implements Transport.
func (t *FileTransport) Fetch(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := t.Locate(id)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(t.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read dump %s: %w", p, err)
	}
	return data, nil
}

// Preview implements Transport. Previews are derived from the full dumps.
func (t *FileTransport) Preview(ctx context.Context, ids []string) ([]byte, error) {
	previews := make([]model.Preview, 0, len(ids))
	for _, id := range ids {
		preview := model.Preview{ID: id, Status: "not_found"}

		data, err := t.Fetch(ctx, id)
		switch {
		case err == nil:
			rec, decodeErr := DecodeRecord(data)
			if decodeErr != nil {
				preview.Status = "error"
				break
			}
			preview.Status = "found"
			preview.Customer = rec.Customer
			preview.Price = rec.Price
			preview.Year = yearOf(rec.DateStart)
		case errors.Is(err, ErrDumpNotFound):
		default:
			return nil, err
		}
		previews = append(previews, preview)
	}
	return json.Marshal(previews)
}

// Locate returns the dump path for id relative to Dir. When several dumps
// exist, JSON wins over YAML, then the shallowest path.
func (t *FileTransport) Locate(id string) (string, error) {
	if !dumpIDPattern.MatchString(id) {
		return "", permanent(fmt.Errorf("%w: invalid id %q", ErrDumpNotFound, id))
	}

	for _, ext := range DumpExtensions {
		found, err := doublestar.Glob(t.fsys, "**/"+id+ext)
		if err != nil {
			return "", permanent(fmt.Errorf("failed to search dumps: %w", err))
		}
		if len(found) == 0 {
			continue
		}
		sort.Slice(found, func(i, j int) bool {
			di, dj := strings.Count(found[i], "/"), strings.Count(found[j], "/")
			if di != dj {
				return di < dj
			}
			return found[i] < found[j]
		})
		return found[0], nil
	}
	return "", permanent(fmt.Errorf("%w: %s", ErrDumpNotFound, id))
}

// IDFromPath extracts the id from a dump file name, reporting false for
// files that are not dumps.
func IDFromPath(p string) (string, bool) {
	base := filepath.Base(p)
	ext := strings.ToLower(filepath.Ext(base))
	for _, want := range DumpExtensions {
		if ext == want {
			id := strings.TrimSuffix(base, filepath.Ext(base))
			return id, dumpIDPattern.MatchString(id)
		}
	}
	return "", false
}

var yearPattern = regexp.MustCompile(`\d{4}`)

func yearOf(date string) string {
	return yearPattern.FindString(date)
}
