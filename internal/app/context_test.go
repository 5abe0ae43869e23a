package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub/internal/config"
	"collabhub/internal/migrate"
)

func TestOpenUsesDefaultsWithoutConfigFile(t *testing.T) {
	ws, err := Open(t.TempDir())
	require.NoError(t, err)
	defer ws.Close()

	assert.Equal(t, "/v1", ws.Config.Server.BasePath)
	assert.Equal(t, time.Second, ws.Config.Realtime.RelayInterval)
	v, err := migrate.CurrentVersion(ws.DB)
	require.NoError(t, err)
	assert.Positive(t, v)
}

func TestOpenUsesConfiguredDatabasePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte("database:\n  path: data/hub.db\n"), 0o644))
	ws, err := Open(dir)
	require.NoError(t, err)
	defer ws.Close()
	assert.FileExists(t, filepath.Join(dir, "data", "hub.db"))
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte("realtime:\n  driver: kafka\n"), 0o644))
	_, err := Open(dir)
	assert.Error(t, err)
}

func TestEnsureHubCreatesOnce(t *testing.T) {
	ws, err := Open(t.TempDir())
	require.NoError(t, err)
	defer ws.Close()
	ctx := context.Background()

	h, created, err := ws.EnsureHub(ctx, "design", "Design", "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alice", h.OwnerID)

	again, created, err := ws.EnsureHub(ctx, "design", "Other", "bob")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Design", again.Name)

	members, err := ws.Engine.ListMembers(ctx, "design")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].ActorID)

	_, _, err = ws.EnsureHub(ctx, "", "", "alice")
	assert.Error(t, err)
}
