// Package history keeps an append-only JSONL record of the operations run in
// a workspace: which action ran, on what, what it produced, and whether it
// committed.
package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status values for an entry.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry represents a single history record.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"ts"`
	Operation string    `json:"op"` // run, add, import, archive, unarchive, reindex
	Action    string    `json:"action,omitempty"`
	Inputs    []string  `json:"inputs,omitempty"`
	Outputs   []string  `json:"outputs,omitempty"`
	Archived  []string  `json:"archived,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Duration  string    `json:"duration,omitempty"`
}

// Log appends entries to a file. A nil *Log is a valid no-op log.
type Log struct {
	path string
	mu   sync.Mutex
}

// New returns a log writing to path.
func New(path string) *Log {
	return &Log{path: path}
}

// Append writes entry, filling in its ID and timestamp when unset.
func (l *Log) Append(entry Entry) (Entry, error) {
	if l == nil {
		return entry, nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Status == "" {
		entry.Status = StatusOK
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return entry, fmt.Errorf("failed to marshal history entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return entry, fmt.Errorf("failed to create history directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return entry, fmt.Errorf("failed to open history log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return entry, fmt.Errorf("failed to write history entry: %w", err)
	}
	return entry, nil
}

// Read returns all entries, oldest first. Malformed lines are skipped.
func (l *Log) Read() ([]Entry, error) {
	if l == nil {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// Tail returns the last n entries, oldest first.
func (l *Log) Tail(n int) ([]Entry, error) {
	entries, err := l.Read()
	if err != nil || n <= 0 || len(entries) <= n {
		return entries, err
	}
	return entries[len(entries)-n:], nil
}
