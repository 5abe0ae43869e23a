package repo

import (
	"context"
	"database/sql"

	"collabhub/internal/domain"
)

const eventColumns = `id,ts,type,COALESCE(hub_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json`

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.HubID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestHubEvents returns the newest events of a hub, newest first.
func (r Repo) LatestHubEvents(ctx context.Context, hubID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE hub_id=? ORDER BY id DESC LIMIT ?`, hubID, limit)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// EventsAfter returns events with id > afterID in ascending order.
func (r Repo) EventsAfter(ctx context.Context, afterID int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := r.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	if !id.Valid {
		return 0, nil
	}
	return id.Int64, nil
}

// CountEventsSince groups hub events at or after since by type.
func (r Repo) CountEventsSince(ctx context.Context, hubID, since string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT type, COUNT(*) FROM events WHERE hub_id=? AND ts>=? GROUP BY type`, hubID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}

func (r Repo) CountActiveActorsSince(ctx context.Context, hubID, since string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(DISTINCT actor_id) FROM events WHERE hub_id=? AND ts>=?`, hubID, since).Scan(&n)
	return n, err
}
