package history

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/pkg/filesystem"
	"github.com/doeshing/shai-ops/internal/ports"
)

// FileStore appends history records to a jsonl file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a history store at path, defaulting to
// ~/.shai/history/history.jsonl.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = filesystem.StatePath("history", "history.jsonl")
	}
	return &FileStore{path: path}
}

// Append implements ports.HistoryStore.
func (f *FileStore) Append(_ context.Context, record domain.HistoryRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if err := os.MkdirAll(filepath.Dir(f.path), domain.DirectoryPermissions); err != nil {
		return "", err
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	defer file.Close()
	data, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	data = append(data, '\n')
	if _, err := file.Write(data); err != nil {
		return "", err
	}
	return record.ID, nil
}

// Query implements ports.HistoryStore.
func (f *FileStore) Query(_ context.Context, query domain.HistoryQuery) (domain.HistoryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.readAll()
	if err != nil {
		return domain.HistoryPage{}, err
	}
	return paginate(records, query), nil
}

// Delete rewrites the file without the record.
func (f *FileStore) Delete(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.readAll()
	if err != nil {
		return false, err
	}
	found := false
	kept := records[:0]
	for _, rec := range records {
		if rec.ID == id {
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	if !found {
		return false, nil
	}
	return true, f.writeAll(kept)
}

// Clear removes the history file.
func (f *FileStore) Clear(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return false, err
	}
	return true, nil
}

// ExportJSON copies the history file to dest.
func (f *FileStore) ExportJSON(_ context.Context, dest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			data = nil
		} else {
			return err
		}
	}
	return os.WriteFile(dest, data, 0o644)
}

// PruneOlderThan removes entries older than N days.
func (f *FileStore) PruneOlderThan(_ context.Context, days int) (int, error) {
	if days <= 0 {
		return 0, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.readAll()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	kept := records[:0]
	removed := 0
	for _, rec := range records {
		if rec.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, f.writeAll(kept)
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// readAll loads all history entries, skipping malformed lines.
func (f *FileStore) readAll() ([]domain.HistoryRecord, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	var records []domain.HistoryRecord
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		var rec domain.HistoryRecord
		if err := json.Unmarshal(line, &rec); err == nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (f *FileStore) writeAll(records []domain.HistoryRecord) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

var (
	_ ports.HistoryStore      = (*FileStore)(nil)
	_ ports.HistoryMaintainer = (*FileStore)(nil)
)
