package repo

import (
	"context"
	"database/sql"

	"collabhub/internal/domain"
)

const consultationColumns = `id,hub_id,topic,question,requester_id,COALESCE(expert_id,''),status,COALESCE(response,''),created_at,updated_at,closed_at`

func scanConsultation(row rowScanner) (domain.Consultation, error) {
	var c domain.Consultation
	var closed sql.NullString
	err := row.Scan(&c.ID, &c.HubID, &c.Topic, &c.Question, &c.RequesterID, &c.ExpertID, &c.Status, &c.Response, &c.CreatedAt, &c.UpdatedAt, &closed)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	c.ClosedAt = optionalString(closed)
	return c, err
}

func (r Repo) InsertConsultation(ctx context.Context, tx *sql.Tx, c domain.Consultation) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO consultations(id,hub_id,topic,question,requester_id,expert_id,status,response,created_at,updated_at,closed_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.HubID, c.Topic, c.Question, c.RequesterID, nullable(c.ExpertID), c.Status, nullable(c.Response), c.CreatedAt, c.UpdatedAt, nullableStringPtr(c.ClosedAt))
	return err
}

func (r Repo) UpdateConsultation(ctx context.Context, tx *sql.Tx, c domain.Consultation) error {
	return affectedOrNotFound(r.q(tx).ExecContext(ctx, `UPDATE consultations SET expert_id=?, status=?, response=?, updated_at=?, closed_at=? WHERE id=?`,
		nullable(c.ExpertID), c.Status, nullable(c.Response), c.UpdatedAt, nullableStringPtr(c.ClosedAt), c.ID))
}

func (r Repo) GetConsultation(ctx context.Context, tx *sql.Tx, id string) (domain.Consultation, error) {
	return scanConsultation(r.q(tx).QueryRowContext(ctx, `SELECT `+consultationColumns+` FROM consultations WHERE id=?`, id))
}

func (r Repo) ListConsultations(ctx context.Context, hubID, status string) ([]domain.Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE hub_id=?`
	args := []any{hubID}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY created_at, rowid`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Consultation{}
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

const notificationColumns = `id,recipient_id,COALESCE(hub_id,''),type,message,COALESCE(entity_kind,''),COALESCE(entity_id,''),read,created_at`

func scanNotification(row rowScanner) (domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(&n.ID, &n.RecipientID, &n.HubID, &n.Type, &n.Message, &n.EntityKind, &n.EntityID, &n.Read, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	return n, err
}

func (r Repo) InsertNotification(ctx context.Context, tx *sql.Tx, n domain.Notification) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO notifications(id,recipient_id,hub_id,type,message,entity_kind,entity_id,read,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		n.ID, n.RecipientID, nullable(n.HubID), n.Type, n.Message, nullable(n.EntityKind), nullable(n.EntityID), n.Read, n.CreatedAt)
	return err
}

func (r Repo) GetNotification(ctx context.Context, tx *sql.Tx, id string) (domain.Notification, error) {
	return scanNotification(r.q(tx).QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=?`, id))
}

func (r Repo) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id=?`
	if unreadOnly {
		query += ` AND read=0`
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY created_at DESC, rowid DESC`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) MarkNotificationRead(ctx context.Context, tx *sql.Tx, id string) error {
	return affectedOrNotFound(r.q(tx).ExecContext(ctx, `UPDATE notifications SET read=1 WHERE id=?`, id))
}

// MarkAllNotificationsRead flips every unread notification of the recipient and returns how many changed.
func (r Repo) MarkAllNotificationsRead(ctx context.Context, tx *sql.Tx, recipientID string) (int, error) {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE notifications SET read=1 WHERE recipient_id=? AND read=0`, recipientID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r Repo) DeleteNotification(ctx context.Context, tx *sql.Tx, id string) error {
	return affectedOrNotFound(r.q(tx).ExecContext(ctx, `DELETE FROM notifications WHERE id=?`, id))
}

func (r Repo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_id=? AND read=0`, recipientID).Scan(&n)
	return n, err
}
