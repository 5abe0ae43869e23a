package repo

import (
	"context"
	"database/sql"

	"collabhub/internal/domain"
)

const reviewColumns = `id,hub_id,COALESCE(rule_id,''),title,COALESCE(description,''),author_id,status,reviewers_json,approval_json,rejection_json,created_at,updated_at,submitted_at,decided_at`

func scanReview(row rowScanner) (domain.Review, error) {
	var rv domain.Review
	var reviewers, approval, rejection, submitted, decided sql.NullString
	err := row.Scan(&rv.ID, &rv.HubID, &rv.RuleID, &rv.Title, &rv.Description, &rv.AuthorID, &rv.Status,
		&reviewers, &approval, &rejection, &rv.CreatedAt, &rv.UpdatedAt, &submitted, &decided)
	if err == sql.ErrNoRows {
		return rv, ErrNotFound
	}
	if err != nil {
		return rv, err
	}
	rv.SubmittedAt = optionalString(submitted)
	rv.DecidedAt = optionalString(decided)
	if err := decodeJSON(reviewers, &rv.Reviewers); err != nil {
		return rv, err
	}
	if err := decodeJSON(approval, &rv.Approval); err != nil {
		return rv, err
	}
	return rv, decodeJSON(rejection, &rv.Rejection)
}

func reviewArgs(rv domain.Review) ([]any, error) {
	reviewers, err := encodeJSON(rv.Reviewers)
	if err != nil {
		return nil, err
	}
	approval, err := encodeJSON(rv.Approval)
	if err != nil {
		return nil, err
	}
	rejection, err := encodeJSON(rv.Rejection)
	if err != nil {
		return nil, err
	}
	return []any{reviewers, approval, rejection}, nil
}

func (r Repo) InsertReview(ctx context.Context, tx *sql.Tx, rv domain.Review) error {
	js, err := reviewArgs(rv)
	if err != nil {
		return err
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO reviews(id,hub_id,rule_id,title,description,author_id,status,reviewers_json,approval_json,rejection_json,created_at,updated_at,submitted_at,decided_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rv.ID, rv.HubID, nullable(rv.RuleID), rv.Title, nullable(rv.Description), rv.AuthorID, rv.Status,
		js[0], js[1], js[2], rv.CreatedAt, rv.UpdatedAt, nullableStringPtr(rv.SubmittedAt), nullableStringPtr(rv.DecidedAt))
	return err
}

func (r Repo) UpdateReview(ctx context.Context, tx *sql.Tx, rv domain.Review) error {
	js, err := reviewArgs(rv)
	if err != nil {
		return err
	}
	return affectedOrNotFound(r.q(tx).ExecContext(ctx, `UPDATE reviews SET rule_id=?, title=?, description=?, status=?, reviewers_json=?, approval_json=?, rejection_json=?, updated_at=?, submitted_at=?, decided_at=? WHERE id=?`,
		nullable(rv.RuleID), rv.Title, nullable(rv.Description), rv.Status, js[0], js[1], js[2], rv.UpdatedAt,
		nullableStringPtr(rv.SubmittedAt), nullableStringPtr(rv.DecidedAt), rv.ID))
}

func (r Repo) GetReview(ctx context.Context, tx *sql.Tx, id string) (domain.Review, error) {
	return scanReview(r.q(tx).QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id=?`, id))
}

type ReviewFilters struct {
	HubID  string
	Status string
}

func (r Repo) ListReviews(ctx context.Context, f ReviewFilters) ([]domain.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE hub_id=?`
	args := []any{f.HubID}
	if f.Status != "" {
		query += ` AND status=?`
		args = append(args, f.Status)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY created_at, rowid`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rv)
	}
	return res, rows.Err()
}

func (r Repo) CountReviewsByStatus(ctx context.Context, hubID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM reviews WHERE hub_id=? GROUP BY status`, hubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

const commentColumns = `id,review_id,author_id,body,resolved,created_at,updated_at`

func scanComment(row rowScanner) (domain.Comment, error) {
	var c domain.Comment
	err := row.Scan(&c.ID, &c.ReviewID, &c.AuthorID, &c.Body, &c.Resolved, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) InsertComment(ctx context.Context, tx *sql.Tx, c domain.Comment) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO comments(id,review_id,author_id,body,resolved,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.ReviewID, c.AuthorID, c.Body, c.Resolved, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) UpdateComment(ctx context.Context, tx *sql.Tx, c domain.Comment) error {
	return affectedOrNotFound(r.q(tx).ExecContext(ctx, `UPDATE comments SET body=?, resolved=?, updated_at=? WHERE id=?`,
		c.Body, c.Resolved, c.UpdatedAt, c.ID))
}

func (r Repo) GetComment(ctx context.Context, tx *sql.Tx, id string) (domain.Comment, error) {
	return scanComment(r.q(tx).QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id=?`, id))
}

func (r Repo) ListComments(ctx context.Context, reviewID string) ([]domain.Comment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE review_id=? ORDER BY created_at, rowid`, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// ListHubComments returns every comment attached to a review of the hub.
func (r Repo) ListHubComments(ctx context.Context, hubID string) ([]domain.Comment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT c.id,c.review_id,c.author_id,c.body,c.resolved,c.created_at,c.updated_at
FROM comments c JOIN reviews rv ON rv.id=c.review_id WHERE rv.hub_id=? ORDER BY c.created_at, c.rowid`, hubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) DeleteComment(ctx context.Context, tx *sql.Tx, id string) error {
	return affectedOrNotFound(r.q(tx).ExecContext(ctx, `DELETE FROM comments WHERE id=?`, id))
}
