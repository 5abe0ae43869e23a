package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"collabhub/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns tx when set so callers can share one helper for both paths.
func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func optionalString(ns sql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	s := ns.String
	return &s
}

func encodeJSON(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if len(t) == 0 {
			return nil, nil
		}
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeJSON(ns sql.NullString, out any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(ns.String), out); err != nil {
		return fmt.Errorf("decode column: %w", err)
	}
	return nil
}

func affectedOrNotFound(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const hubColumns = `id,name,COALESCE(description,''),owner_id,member_count,metadata_json,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHub(row rowScanner) (domain.Hub, error) {
	var h domain.Hub
	var meta sql.NullString
	err := row.Scan(&h.ID, &h.Name, &h.Description, &h.OwnerID, &h.MemberCount, &meta, &h.CreatedAt, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return h, ErrNotFound
	}
	if err != nil {
		return h, err
	}
	return h, decodeJSON(meta, &h.Metadata)
}

func (r Repo) InsertHub(ctx context.Context, tx *sql.Tx, h domain.Hub) error {
	meta, err := encodeJSON(h.Metadata)
	if err != nil {
		return err
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO hubs(id,name,description,owner_id,member_count,metadata_json,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		h.ID, h.Name, nullable(h.Description), h.OwnerID, h.MemberCount, meta, h.CreatedAt, h.UpdatedAt)
	return err
}

func (r Repo) UpdateHub(ctx context.Context, tx *sql.Tx, h domain.Hub) error {
	meta, err := encodeJSON(h.Metadata)
	if err != nil {
		return err
	}
	return affectedOrNotFound(r.q(tx).ExecContext(ctx, `UPDATE hubs SET name=?, description=?, metadata_json=?, updated_at=? WHERE id=?`,
		h.Name, nullable(h.Description), meta, h.UpdatedAt, h.ID))
}

func (r Repo) GetHub(ctx context.Context, tx *sql.Tx, id string) (domain.Hub, error) {
	return scanHub(r.q(tx).QueryRowContext(ctx, `SELECT `+hubColumns+` FROM hubs WHERE id=?`, id))
}

func (r Repo) ListHubs(ctx context.Context) ([]domain.Hub, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+hubColumns+` FROM hubs ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Hub{}
	for rows.Next() {
		h, err := scanHub(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

func (r Repo) DeleteHub(ctx context.Context, tx *sql.Tx, id string) error {
	return affectedOrNotFound(r.q(tx).ExecContext(ctx, `DELETE FROM hubs WHERE id=?`, id))
}

// SyncMemberCount recomputes hubs.member_count from active memberships.
func (r Repo) SyncMemberCount(ctx context.Context, tx *sql.Tx, hubID, now string) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE hubs SET member_count=(SELECT COUNT(*) FROM team_members WHERE hub_id=? AND status='active'), updated_at=? WHERE id=?`,
		hubID, now, hubID)
	return err
}

const memberColumns = `id,hub_id,actor_id,COALESCE(name,''),role,status,joined_at,updated_at`

func scanMember(row rowScanner) (domain.TeamMember, error) {
	var m domain.TeamMember
	err := row.Scan(&m.ID, &m.HubID, &m.ActorID, &m.Name, &m.Role, &m.Status, &m.JoinedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) InsertMember(ctx context.Context, tx *sql.Tx, m domain.TeamMember) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO team_members(id,hub_id,actor_id,name,role,status,joined_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		m.ID, m.HubID, m.ActorID, nullable(m.Name), m.Role, m.Status, m.JoinedAt, m.UpdatedAt)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "unique") {
		return fmt.Errorf("member %s already in hub %s: %w", m.ActorID, m.HubID, ErrConflict)
	}
	return err
}

func (r Repo) UpdateMember(ctx context.Context, tx *sql.Tx, m domain.TeamMember) error {
	return affectedOrNotFound(r.q(tx).ExecContext(ctx, `UPDATE team_members SET name=?, role=?, status=?, updated_at=? WHERE id=?`,
		nullable(m.Name), m.Role, m.Status, m.UpdatedAt, m.ID))
}

func (r Repo) GetMember(ctx context.Context, tx *sql.Tx, id string) (domain.TeamMember, error) {
	return scanMember(r.q(tx).QueryRowContext(ctx, `SELECT `+memberColumns+` FROM team_members WHERE id=?`, id))
}

func (r Repo) GetMemberByActor(ctx context.Context, tx *sql.Tx, hubID, actorID string) (domain.TeamMember, error) {
	return scanMember(r.q(tx).QueryRowContext(ctx, `SELECT `+memberColumns+` FROM team_members WHERE hub_id=? AND actor_id=?`, hubID, actorID))
}

func (r Repo) ListMembers(ctx context.Context, tx *sql.Tx, hubID string) ([]domain.TeamMember, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT `+memberColumns+` FROM team_members WHERE hub_id=? ORDER BY joined_at, rowid`, hubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.TeamMember{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) DeleteMember(ctx context.Context, tx *sql.Tx, id string) error {
	return affectedOrNotFound(r.q(tx).ExecContext(ctx, `DELETE FROM team_members WHERE id=?`, id))
}

// ErrConflict marks writes rejected by a uniqueness constraint.
var ErrConflict = errors.New("conflict")
