package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	stateDir           = ".collabhub"
	fileName           = "collabhub.db"
	defaultBusyTimeout = 5 * time.Second
)

// Config selects the database file. Path, when set, wins over the
// workspace location.
type Config struct {
	Workspace   string
	Path        string
	BusyTimeout time.Duration
}

func (c Config) file() string {
	if c.Path != "" {
		return c.Path
	}
	return Path(c.Workspace)
}

// Path returns the default database location inside a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, stateDir, fileName)
}

// Open creates the parent directory if needed and opens the SQLite file
// with foreign keys enforced.
func Open(cfg Config) (*sql.DB, error) {
	file := cfg.file()
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", file, busy.Milliseconds())
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY under concurrent requests.
	conn.SetMaxOpenConns(1)
	return conn, nil
}
