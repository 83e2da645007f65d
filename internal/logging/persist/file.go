package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/telemetrykit/lokibuf/internal/logging"
)

// persistedEntry is the on-disk record layout shared by both stores.
type persistedEntry struct {
	Timestamp int64             `json:"timestamp"`
	Level     logging.Level     `json:"level"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func toPersisted(entries []logging.LogEntry) []persistedEntry {
	records := make([]persistedEntry, 0, len(entries))
	for _, e := range entries {
		records = append(records, persistedEntry{
			Timestamp: e.Timestamp.UnixNano(),
			Level:     e.Level,
			Message:   e.Message,
			Metadata:  e.Metadata,
		})
	}
	return records
}

func fromPersisted(records []persistedEntry) []logging.LogEntry {
	entries := make([]logging.LogEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, logging.NewEntryAt(
			time.Unix(0, r.Timestamp), r.Level, r.Message, r.Metadata))
	}
	return entries
}

// FileStore persists pending entries as a JSON array in a single file.
// Writes go through a temp file and rename, so a concurrent reader never
// observes a torn file. A missing file is an empty store, not an error.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("persist: create store directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Save(entries []logging.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(toPersisted(entries))
}

func (s *FileStore) Append(entries []logging.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read()
	if err != nil {
		return err
	}
	return s.write(append(existing, toPersisted(entries)...))
}

func (s *FileStore) LoadAndClear() ([]logging.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return nil, err
	}
	if err := s.removeFile(); err != nil {
		return nil, err
	}
	return fromPersisted(records), nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeFile()
}

func (s *FileStore) read() ([]persistedEntry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persist: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []persistedEntry
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("persist: decode %s: %w", s.path, err)
	}
	return records, nil
}

func (s *FileStore) write(records []persistedEntry) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("persist: encode entries: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "pending-*.json")
	if err != nil {
		return fmt.Errorf("persist: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("persist: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persist: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persist: replace %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) removeFile() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("persist: remove %s: %w", s.path, err)
	}
	return nil
}
