// internal/engine/journal.go
package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/solatis/lumen/internal/types"
)

// Transition is one journal record.
type Transition struct {
	Time      time.Time       `json:"time"`
	Profile   string          `json:"profile"`
	ElementID types.ElementID `json:"element_id"`
	Name      string          `json:"name,omitempty"`
	Met       bool            `json:"met"`
}

// Journal appends transitions to one JSON Lines file per UTC day,
// <dir>/2006-01-02.jsonl. Writing is best effort: failures are logged once
// per file and never reach the update loop.
type Journal struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	day    string
	file   *os.File
	failed string
}

// NewJournal creates a journal writing under dir. The directory is created
// on first write.
func NewJournal(dir string, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Journal{dir: dir, logger: logger}
}

// Path returns the file holding transitions of day t.
func (j *Journal) Path(t time.Time) string {
	return filepath.Join(j.dir, t.UTC().Format(time.DateOnly)+".jsonl")
}

// Record appends tr.
func (j *Journal) Record(tr Transition) {
	line, err := json.Marshal(tr)
	if err != nil {
		j.logger.Warn("journal encode failed", "error", err)
		return
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.rotate(tr.Time); err != nil {
		if j.failed != j.day {
			j.failed = j.day
			j.logger.Warn("journal unavailable", "dir", j.dir, "error", err)
		}
		return
	}
	if _, err := j.file.Write(line); err != nil {
		j.logger.Warn("journal write failed", "error", err)
	}
}

// rotate opens the file for t's day. Caller holds mu.
func (j *Journal) rotate(t time.Time) error {
	day := t.UTC().Format(time.DateOnly)
	if j.file != nil && j.day == day {
		return nil
	}
	if j.file != nil {
		_ = j.file.Close()
		j.file = nil
	}
	j.day = day
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	f, err := os.OpenFile(j.Path(t), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	j.file = f
	return nil
}

// Close closes the current file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}
