package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"collabhub/internal/config"
	"collabhub/internal/db"
	"collabhub/internal/domain"
	"collabhub/internal/engine"
	"collabhub/internal/migrate"
	"collabhub/internal/repo"
)

// Workspace is an opened workspace: its config, its migrated database and
// an engine over that database.
type Workspace struct {
	Dir    string
	Config *config.Config
	DB     *sql.DB
	Engine engine.Engine
}

// Open loads collabhub.yml (defaults when absent), opens the database and
// applies pending migrations.
func Open(dir string) (*Workspace, error) {
	cfg, err := config.LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	dbPath := cfg.Database.Path
	if dbPath != "" && !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(dir, dbPath)
	}
	conn, err := db.Open(db.Config{Workspace: dir, Path: dbPath, BusyTimeout: cfg.Database.BusyTimeout})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Workspace{Dir: dir, Config: cfg, DB: conn, Engine: engine.New(conn)}, nil
}

func (w *Workspace) Close() error {
	return w.DB.Close()
}

// EnsureHub returns hub id, creating it with actorID as owner when it does
// not exist yet.
func (w *Workspace) EnsureHub(ctx context.Context, id, name, actorID string) (domain.Hub, bool, error) {
	if id == "" {
		return domain.Hub{}, false, fmt.Errorf("hub id required")
	}
	h, err := w.Engine.GetHub(ctx, id)
	if err == nil {
		return h, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Hub{}, false, err
	}
	if name == "" {
		name = id
	}
	if actorID == "" {
		actorID = "local-user"
	}
	h, err = w.Engine.CreateHub(ctx, engine.HubCreateOptions{ID: id, Name: name, ActorID: actorID})
	if err != nil {
		return domain.Hub{}, false, fmt.Errorf("create hub: %w", err)
	}
	return h, true, nil
}
