// Package history keeps a local log of registry index runs as JSON lines.
package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jerabekjiri/automation-hub-collection/internal/registry"
)

// FileStore appends run records to a JSON lines file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store writing to path. The file and its parent
// directory are created on the first Record.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Record appends rec as one line.
func (s *FileStore) Record(_ context.Context, rec *registry.RunRecord) error {
	if rec == nil {
		return fmt.Errorf("nil run record")
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling run record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening history file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("writing history file: %w", err)
	}
	return f.Close()
}

// Load returns the recorded runs, oldest first. If name is not empty only
// runs of that registry are returned; limit > 0 keeps the most recent ones.
// A missing file yields no records.
func (s *FileStore) Load(name string, limit int) ([]registry.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening history file: %w", err)
	}
	defer f.Close()

	var records []registry.RunRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec registry.RunRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", s.path, lineNo, err)
		}
		if name != "" && rec.Registry != name {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading history file: %w", err)
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

var _ registry.Recorder = (*FileStore)(nil)
