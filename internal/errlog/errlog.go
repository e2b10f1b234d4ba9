// Package errlog keeps a short local record of client-side failures, so a
// citizen losing a queued submission has something to show the ouvidoria.
package errlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const (
	fileName   = "erros.json"
	maxEntries = 10
)

// Entry is one recorded failure.
type Entry struct {
	TS       string `json:"ts"`
	Origem   string `json:"origem"`
	Mensagem string `json:"mensagem"`
	Detalhes string `json:"detalhes,omitempty"`
}

// Log appends entries to a bounded JSON file, oldest first.
type Log struct {
	Workspace string
	Now       func() time.Time
}

func New(workspace string) *Log {
	return &Log{Workspace: workspace, Now: time.Now}
}

func (l *Log) path() string {
	return filepath.Join(l.Workspace, fileName)
}

// Append records a failure, dropping the oldest entries beyond the cap.
func (l *Log) Append(origem, mensagem, detalhes string) error {
	entries, _ := l.List()
	entries = append(entries, Entry{
		TS:       l.Now().UTC().Format(time.RFC3339),
		Origem:   origem,
		Mensagem: mensagem,
		Detalhes: detalhes,
	})
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.path(), data, 0o644)
}

// List returns the recorded failures, oldest first. A missing or corrupt
// file reads as empty.
func (l *Log) List() ([]Entry, error) {
	data, err := os.ReadFile(l.path())
	if err != nil {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil
	}
	return entries, nil
}

// Clear removes the file.
func (l *Log) Clear() error {
	err := os.Remove(l.path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
