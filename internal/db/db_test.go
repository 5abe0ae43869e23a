package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesWorkspaceDir(t *testing.T) {
	dir := t.TempDir()
	conn, err := Open(Config{Workspace: dir})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Ping())
	assert.FileExists(t, Path(dir))
}

func TestOpenHonoursExplicitPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "hub.db")
	conn, err := Open(Config{Workspace: "ignored", Path: file})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Ping())
	assert.FileExists(t, file)

	var fk int
	require.NoError(t, conn.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}
