package events

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub/internal/db"
	"collabhub/internal/migrate"
)

func openLog(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return conn
}

func TestAppendStoresEventWithPayload(t *testing.T) {
	conn := openLog(t)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	w := Writer{DB: conn, Now: func() time.Time { return fixed }}

	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, w.Append(ctx, tx, "review.approved", "", "review", "r1", "alice", EventPayload{"note": "ok"}))
	require.NoError(t, tx.Commit())

	var ts, payload string
	var hub sql.NullString
	require.NoError(t, conn.QueryRow(`SELECT ts, hub_id, payload_json FROM events`).Scan(&ts, &hub, &payload))
	assert.Equal(t, "2026-03-01T11:00:00Z", ts)
	assert.False(t, hub.Valid)
	assert.JSONEq(t, `{"note":"ok"}`, payload)
}

func TestWriteRejectsIncompleteRecords(t *testing.T) {
	conn := openLog(t)
	ctx := context.Background()
	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	w := Writer{DB: conn}
	for name, rec := range map[string]Record{
		"no type":  {EntityKind: "hub", ActorID: "alice"},
		"no kind":  {Type: "hub.created", ActorID: "alice"},
		"no actor": {Type: "hub.created", EntityKind: "hub"},
	} {
		assert.ErrorIs(t, w.Write(ctx, tx, rec), ErrInvalidEvent, name)
	}

	require.NoError(t, w.Write(ctx, tx, Record{Type: "hub.created", HubID: "h1", EntityKind: "hub", ActorID: "alice"}))
	var payload string
	require.NoError(t, tx.QueryRow(`SELECT payload_json FROM events`).Scan(&payload))
	assert.Equal(t, "{}", payload)
}
