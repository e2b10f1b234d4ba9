package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	defaultDBName = "ouvidoria.db"
	queueDBName   = "fila.db"
)

type Config struct {
	Workspace string
}

func dbPath(workspace, name string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".ouvidoria", name)
}

// EnsureWorkspace creates the workspace directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(workspace, ".ouvidoria")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the service SQLite database with foreign keys on.
func Open(cfg Config) (*sql.DB, error) {
	return open(cfg.Workspace, defaultDBName)
}

// OpenQueue opens the local offline-queue database. It is a separate file so
// the client-side queue never contends with the service schema.
func OpenQueue(cfg Config) (*sql.DB, error) {
	return open(cfg.Workspace, queueDBName)
}

func open(workspace, name string) (*sql.DB, error) {
	if _, err := EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", dbPath(workspace, name))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Path returns the service db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace, defaultDBName)
}

// QueuePath returns the offline-queue db path for the workspace.
func QueuePath(workspace string) string {
	return dbPath(workspace, queueDBName)
}
