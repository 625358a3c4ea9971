package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/patientportal/portal/internal/platform/db"
)

const foreignKeyViolation = "23503"

type repoPG struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.From(ctx, r.pool)
}

const notificationCols = `notification_id, patient_id, title, message, type, is_read, related_message_id, created_at`

func (r *repoPG) scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.PatientID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.RelatedMessageID, &n.CreatedAt)
	return &n, err
}

func (r *repoPG) Create(ctx context.Context, n *Notification) error {
	n.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO notifications (notification_id, patient_id, title, message, type, related_message_id)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING is_read, created_at`,
		n.ID, n.PatientID, n.Title, n.Message, n.Type, n.RelatedMessageID,
	).Scan(&n.IsRead, &n.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return ErrUnknownReference
	}
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Notification, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+notificationCols+` FROM notifications WHERE patient_id = $1 ORDER BY created_at DESC, notification_id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Notification{}
	for rows.Next() {
		n, err := r.scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (r *repoPG) CountUnread(ctx context.Context, patientID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE patient_id = $1 AND NOT is_read`, patientID).Scan(&n)
	return n, err
}

func (r *repoPG) OwnedBy(ctx context.Context, patientID, id uuid.UUID) (bool, error) {
	var owned bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE notification_id = $1 AND patient_id = $2)`,
		id, patientID).Scan(&owned)
	return owned, err
}

func (r *repoPG) MarkRead(ctx context.Context, patientID, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE notification_id = $1 AND patient_id = $2`, id, patientID)
	return err
}

func (r *repoPG) MarkAllRead(ctx context.Context, patientID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE patient_id = $1 AND NOT is_read`, patientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) MarkReadByConversation(ctx context.Context, patientID, conversationID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE patient_id = $1 AND NOT is_read
		  AND related_message_id IN (
		      SELECT message_id FROM messages WHERE conversation_id = $2 AND NOT is_deleted)`,
		patientID, conversationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) Delete(ctx context.Context, patientID, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM notifications WHERE notification_id = $1 AND patient_id = $2`, id, patientID)
	return err
}
