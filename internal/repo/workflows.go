package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"collabhub/internal/domain"
)

const workflowColumns = `id,hub_id,name,COALESCE(description,''),steps_json,created_by,created_at`

func scanWorkflow(row rowScanner) (domain.Workflow, error) {
	var w domain.Workflow
	var steps sql.NullString
	err := row.Scan(&w.ID, &w.HubID, &w.Name, &w.Description, &steps, &w.CreatedBy, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	if err := decodeJSON(steps, &w.Steps); err != nil {
		return w, err
	}
	if w.Steps == nil {
		w.Steps = []domain.WorkflowStep{}
	}
	return w, nil
}

func (r Repo) InsertWorkflow(ctx context.Context, tx *sql.Tx, w domain.Workflow) error {
	steps := w.Steps
	if steps == nil {
		steps = []domain.WorkflowStep{}
	}
	b, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO workflows(id,hub_id,name,description,steps_json,created_by,created_at) VALUES (?,?,?,?,?,?,?)`,
		w.ID, w.HubID, w.Name, nullable(w.Description), string(b), w.CreatedBy, w.CreatedAt)
	return err
}

func (r Repo) GetWorkflow(ctx context.Context, tx *sql.Tx, id string) (domain.Workflow, error) {
	return scanWorkflow(r.q(tx).QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id=?`, id))
}

func (r Repo) ListWorkflows(ctx context.Context, hubID string) ([]domain.Workflow, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE hub_id=? ORDER BY created_at, rowid`, hubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Workflow{}
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

const executionColumns = `id,workflow_id,hub_id,status,current_step,input_json,started_by,started_at,updated_at,completed_at`

func scanExecution(row rowScanner) (domain.WorkflowExecution, error) {
	var x domain.WorkflowExecution
	var input, completed sql.NullString
	err := row.Scan(&x.ID, &x.WorkflowID, &x.HubID, &x.Status, &x.CurrentStep, &input, &x.StartedBy, &x.StartedAt, &x.UpdatedAt, &completed)
	if err == sql.ErrNoRows {
		return x, ErrNotFound
	}
	if err != nil {
		return x, err
	}
	x.CompletedAt = optionalString(completed)
	return x, decodeJSON(input, &x.Input)
}

func (r Repo) InsertExecution(ctx context.Context, tx *sql.Tx, x domain.WorkflowExecution) error {
	input, err := encodeJSON(x.Input)
	if err != nil {
		return err
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO workflow_executions(id,workflow_id,hub_id,status,current_step,input_json,started_by,started_at,updated_at,completed_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		x.ID, x.WorkflowID, x.HubID, x.Status, x.CurrentStep, input, x.StartedBy, x.StartedAt, x.UpdatedAt, nullableStringPtr(x.CompletedAt))
	return err
}

func (r Repo) GetExecution(ctx context.Context, tx *sql.Tx, id string) (domain.WorkflowExecution, error) {
	return scanExecution(r.q(tx).QueryRowContext(ctx, `SELECT `+executionColumns+` FROM workflow_executions WHERE id=?`, id))
}

func (r Repo) CountRunningExecutions(ctx context.Context, hubID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflow_executions WHERE hub_id=? AND status='running'`, hubID).Scan(&n)
	return n, err
}

const knowledgeColumns = `id,hub_id,title,content,tags_json,author_id,created_at,updated_at`

func scanKnowledge(row rowScanner) (domain.KnowledgeItem, error) {
	var k domain.KnowledgeItem
	var tags sql.NullString
	err := row.Scan(&k.ID, &k.HubID, &k.Title, &k.Content, &tags, &k.AuthorID, &k.CreatedAt, &k.UpdatedAt)
	if err == sql.ErrNoRows {
		return k, ErrNotFound
	}
	if err != nil {
		return k, err
	}
	return k, decodeJSON(tags, &k.Tags)
}

func (r Repo) InsertKnowledge(ctx context.Context, tx *sql.Tx, k domain.KnowledgeItem) error {
	tags, err := encodeJSON(k.Tags)
	if err != nil {
		return err
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO knowledge_items(id,hub_id,title,content,tags_json,author_id,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		k.ID, k.HubID, k.Title, k.Content, tags, k.AuthorID, k.CreatedAt, k.UpdatedAt)
	return err
}

func (r Repo) UpdateKnowledge(ctx context.Context, tx *sql.Tx, k domain.KnowledgeItem) error {
	tags, err := encodeJSON(k.Tags)
	if err != nil {
		return err
	}
	return affectedOrNotFound(r.q(tx).ExecContext(ctx, `UPDATE knowledge_items SET title=?, content=?, tags_json=?, updated_at=? WHERE id=?`,
		k.Title, k.Content, tags, k.UpdatedAt, k.ID))
}

func (r Repo) GetKnowledge(ctx context.Context, tx *sql.Tx, id string) (domain.KnowledgeItem, error) {
	return scanKnowledge(r.q(tx).QueryRowContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge_items WHERE id=?`, id))
}

// ListKnowledge lists hub items; a non-empty query matches title, content or tags.
func (r Repo) ListKnowledge(ctx context.Context, hubID, query string) ([]domain.KnowledgeItem, error) {
	sqlQuery := `SELECT ` + knowledgeColumns + ` FROM knowledge_items WHERE hub_id=?`
	args := []any{hubID}
	if query != "" {
		like := "%" + escapeLike(query) + "%"
		sqlQuery += ` AND (title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\' OR tags_json LIKE ? ESCAPE '\')`
		args = append(args, like, like, like)
	}
	rows, err := r.DB.QueryContext(ctx, sqlQuery+` ORDER BY created_at, rowid`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.KnowledgeItem{}
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, k)
	}
	return res, rows.Err()
}

func (r Repo) DeleteKnowledge(ctx context.Context, tx *sql.Tx, id string) error {
	return affectedOrNotFound(r.q(tx).ExecContext(ctx, `DELETE FROM knowledge_items WHERE id=?`, id))
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}

// CountRows counts rows of a hub-scoped table. table must be a trusted identifier.
func (r Repo) CountRows(ctx context.Context, table, hubID, extraWhere string, args ...any) (int, error) {
	query := `SELECT COUNT(*) FROM ` + table + ` WHERE hub_id=?`
	if extraWhere != "" {
		query += ` AND ` + extraWhere
	}
	var n int
	err := r.DB.QueryRowContext(ctx, query, append([]any{hubID}, args...)...).Scan(&n)
	return n, err
}
