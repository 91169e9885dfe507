// Package history keeps an append-only record of command and workflow
// runs under the store directory.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/wfkit/wf/internal/errors"
)

// FileName is the history document inside the store directory.
const FileName = "history.json"

// Kind distinguishes what was run.
type Kind string

const (
	KindCommand  Kind = "command"
	KindWorkflow Kind = "workflow"
)

// Entry is one recorded run.
type Entry struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	ExitCode   int       `json:"exit_code"`
	FailedStep string    `json:"failed_step,omitempty"`
}

// Log appends run entries to the history file.
type Log struct {
	path string
}

// Open creates a history log rooted at the store directory.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrStore,
			fmt.Sprintf("Failed to create history directory %s", dir),
			"Check directory permissions")
	}
	return &Log{path: filepath.Join(dir, FileName)}, nil
}

// Record appends one entry, assigning it a fresh ID.
func (l *Log) Record(kind Kind, name string, startedAt time.Time, duration time.Duration, exitCode int, failedStep string) error {
	entries, err := l.read()
	if err != nil {
		return err
	}
	entries = append(entries, Entry{
		ID:         uuid.NewString(),
		Kind:       kind,
		Name:       name,
		StartedAt:  startedAt.UTC(),
		DurationMS: duration.Milliseconds(),
		ExitCode:   exitCode,
		FailedStep: failedStep,
	})
	return l.write(entries)
}

// Recent returns the newest entries first, at most limit of them.
// A non-positive limit returns everything.
func (l *Log) Recent(limit int) ([]Entry, error) {
	entries, err := l.read()
	if err != nil {
		return nil, err
	}
	// Stored oldest-first; reverse for display.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (l *Log) read() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrStore,
			"Failed to read history file",
			"Check file permissions")
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrStore,
			fmt.Sprintf("History file %s is not valid JSON", l.path),
			"Remove the file to start a fresh history")
	}
	return entries, nil
}

func (l *Log) write(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			"Failed to encode history", "")
	}
	tmp, err := os.CreateTemp(filepath.Dir(l.path), FileName+".tmp-*")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			"Failed to create temporary history file",
			"Check directory permissions")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrStore,
			"Failed to write history file",
			"Check available disk space")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrStore,
			"Failed to finalize history file", "")
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrStore,
			"Failed to replace history file",
			"Check directory permissions")
	}
	return nil
}
