package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	v, err := CurrentVersion(conn)
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, Migrate(conn))
	require.NoError(t, Migrate(conn))

	all, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, all)
	v, err = CurrentVersion(conn)
	require.NoError(t, err)
	assert.Equal(t, all[len(all)-1].Version, v)

	applied, err := History(context.Background(), conn)
	require.NoError(t, err)
	require.Len(t, applied, len(all))
	assert.Equal(t, "0001_init.sql", applied[0].Name)
	assert.NotEmpty(t, applied[0].AppliedAt)
}
