package messaging

import (
	"context"

	"github.com/google/uuid"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *Conversation) error
	// ListActiveByPatient returns the patient's non-archived conversations,
	// decorated, most recent activity first.
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Conversation, error)
	OwnedBy(ctx context.Context, patientID, id uuid.UUID) (bool, error)
	Archive(ctx context.Context, id uuid.UUID) error
	Touch(ctx context.Context, id uuid.UUID) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	// ListVisible returns the conversation's non-deleted messages, oldest
	// first, with SenderName set.
	ListVisible(ctx context.Context, conversationID uuid.UUID) ([]*Message, error)
	// AuthoredBy reports whether the message exists in a conversation owned
	// by patientID and was written by that patient.
	AuthoredBy(ctx context.Context, patientID, id uuid.UUID) (bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// MarkProviderMessagesRead marks every unread provider message of the
	// conversation read and returns how many changed.
	MarkProviderMessagesRead(ctx context.Context, conversationID uuid.UUID) (int64, error)
}
