package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUnknownReference is returned by Create when the patient or related
// message does not exist.
var ErrUnknownReference = errors.New("unknown patient or related message")

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Notification, error)
	CountUnread(ctx context.Context, patientID uuid.UUID) (int, error)
	OwnedBy(ctx context.Context, patientID, id uuid.UUID) (bool, error)
	MarkRead(ctx context.Context, patientID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, patientID uuid.UUID) (int64, error)
	// MarkReadByConversation marks the patient's notifications that point at
	// any message of the conversation.
	MarkReadByConversation(ctx context.Context, patientID, conversationID uuid.UUID) (int64, error)
	Delete(ctx context.Context, patientID, id uuid.UUID) error
}
