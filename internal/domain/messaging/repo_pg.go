package messaging

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/patientportal/portal/internal/platform/db"
)

// =========== Conversation Repository ===========

type conversationRepoPG struct{ pool *pgxpool.Pool }

func NewConversationRepo(pool *pgxpool.Pool) ConversationRepository {
	return &conversationRepoPG{pool: pool}
}

func (r *conversationRepoPG) conn(ctx context.Context) db.Querier {
	return db.From(ctx, r.pool)
}

func (r *conversationRepoPG) Create(ctx context.Context, c *Conversation) error {
	c.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO conversations (conversation_id, patient_id, provider_id, subject)
		VALUES ($1,$2,$3,$4)
		RETURNING is_archived, created_at, updated_at`,
		c.ID, c.PatientID, c.ProviderID, c.Subject,
	).Scan(&c.IsArchived, &c.CreatedAt, &c.UpdatedAt)
}

const listConversationsSQL = `
	SELECT c.conversation_id, c.patient_id, c.provider_id, c.subject, c.is_archived,
		c.created_at, c.updated_at,
		p.first_name || ' ' || p.last_name, p.specialty, p.department,
		lm.content, lm.created_at,
		(SELECT COUNT(*) FROM messages u
		 WHERE u.conversation_id = c.conversation_id
		   AND u.sender_type = 'Provider' AND NOT u.is_read AND NOT u.is_deleted)
	FROM conversations c
	JOIN providers p ON p.provider_id = c.provider_id
	LEFT JOIN LATERAL (
		SELECT m.content, m.created_at FROM messages m
		WHERE m.conversation_id = c.conversation_id AND NOT m.is_deleted
		ORDER BY m.created_at DESC, m.message_id DESC
		LIMIT 1
	) lm ON TRUE
	WHERE c.patient_id = $1 AND NOT c.is_archived
	ORDER BY COALESCE(lm.created_at, c.created_at) DESC, c.conversation_id`

func scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.PatientID, &c.ProviderID, &c.Subject, &c.IsArchived,
		&c.CreatedAt, &c.UpdatedAt,
		&c.ProviderName, &c.ProviderSpecialty, &c.ProviderDepartment,
		&c.LastMessage, &c.LastMessageDate, &c.UnreadCount)
	return &c, err
}

func (r *conversationRepoPG) ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Conversation, error) {
	rows, err := r.conn(ctx).Query(ctx, listConversationsSQL, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *conversationRepoPG) OwnedBy(ctx context.Context, patientID, id uuid.UUID) (bool, error) {
	var owned bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM conversations WHERE conversation_id = $1 AND patient_id = $2)`,
		id, patientID).Scan(&owned)
	return owned, err
}

func (r *conversationRepoPG) Archive(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE conversations SET is_archived = TRUE, updated_at = NOW() WHERE conversation_id = $1`, id)
	return err
}

func (r *conversationRepoPG) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE conversations SET updated_at = NOW() WHERE conversation_id = $1`, id)
	return err
}

// =========== Message Repository ===========

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewMessageRepo(pool *pgxpool.Pool) MessageRepository {
	return &messageRepoPG{pool: pool}
}

func (r *messageRepoPG) conn(ctx context.Context) db.Querier {
	return db.From(ctx, r.pool)
}

func (r *messageRepoPG) Create(ctx context.Context, m *Message) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO messages (message_id, conversation_id, sender_id, sender_type, content)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING is_read, read_at, is_deleted, created_at`,
		m.ID, m.ConversationID, m.SenderID, m.SenderType, m.Content,
	).Scan(&m.IsRead, &m.ReadAt, &m.IsDeleted, &m.CreatedAt)
}

const listMessagesSQL = `
	SELECT m.message_id, m.conversation_id, m.sender_id, m.sender_type, m.content,
		m.is_read, m.read_at, m.is_deleted, m.created_at,
		COALESCE(CASE m.sender_type
			WHEN 'Patient' THEN pa.first_name || ' ' || pa.last_name
			WHEN 'Provider' THEN pr.first_name || ' ' || pr.last_name
		END, '')
	FROM messages m
	LEFT JOIN patients pa ON m.sender_type = 'Patient' AND pa.patient_id = m.sender_id
	LEFT JOIN providers pr ON m.sender_type = 'Provider' AND pr.provider_id = m.sender_id
	WHERE m.conversation_id = $1 AND NOT m.is_deleted
	ORDER BY m.created_at ASC, m.message_id`

func (r *messageRepoPG) ListVisible(ctx context.Context, conversationID uuid.UUID) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx, listMessagesSQL, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderType, &m.Content,
			&m.IsRead, &m.ReadAt, &m.IsDeleted, &m.CreatedAt, &m.SenderName); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}

func (r *messageRepoPG) AuthoredBy(ctx context.Context, patientID, id uuid.UUID) (bool, error) {
	var owned bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM messages m
			JOIN conversations c ON c.conversation_id = m.conversation_id
			WHERE m.message_id = $1 AND c.patient_id = $2
			  AND m.sender_type = 'Patient' AND m.sender_id = $2)`,
		id, patientID).Scan(&owned)
	return owned, err
}

func (r *messageRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE messages SET is_deleted = TRUE WHERE message_id = $1`, id)
	return err
}

func (r *messageRepoPG) MarkProviderMessagesRead(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE messages SET is_read = TRUE, read_at = NOW()
		WHERE conversation_id = $1 AND sender_type = 'Provider'
		  AND NOT is_read AND NOT is_deleted`,
		conversationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
