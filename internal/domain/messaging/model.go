package messaging

import (
	"time"

	"github.com/google/uuid"
)

const (
	SenderPatient  = "Patient"
	SenderProvider = "Provider"
)

// Conversation maps to the conversations table. The Provider* and
// LastMessage* fields and UnreadCount are derived when listing.
type Conversation struct {
	ID         uuid.UUID `db:"conversation_id" json:"ConversationId"`
	PatientID  uuid.UUID `db:"patient_id" json:"PatientId"`
	ProviderID uuid.UUID `db:"provider_id" json:"ProviderId"`
	Subject    string    `db:"subject" json:"Subject"`
	IsArchived bool      `db:"is_archived" json:"IsArchived"`
	CreatedAt  time.Time `db:"created_at" json:"CreatedAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"UpdatedAt"`

	ProviderName       string     `json:"ProviderName,omitempty"`
	ProviderSpecialty  *string    `json:"ProviderSpecialty,omitempty"`
	ProviderDepartment *string    `json:"ProviderDepartment,omitempty"`
	LastMessage        *string    `json:"LastMessage,omitempty"`
	LastMessageDate    *time.Time `json:"LastMessageDate,omitempty"`
	UnreadCount        int        `json:"UnreadCount"`
}

// Message maps to the messages table. SenderName is resolved from the
// patient or provider the SenderType points at.
type Message struct {
	ID             uuid.UUID  `db:"message_id" json:"MessageId"`
	ConversationID uuid.UUID  `db:"conversation_id" json:"ConversationId"`
	SenderID       uuid.UUID  `db:"sender_id" json:"SenderId"`
	SenderType     string     `db:"sender_type" json:"SenderType"`
	Content        string     `db:"content" json:"Content"`
	IsRead         bool       `db:"is_read" json:"IsRead"`
	ReadAt         *time.Time `db:"read_at" json:"ReadAt,omitempty"`
	IsDeleted      bool       `db:"is_deleted" json:"IsDeleted"`
	CreatedAt      time.Time  `db:"created_at" json:"CreatedAt"`

	SenderName string `json:"SenderName,omitempty"`
}

// Author is the patient writing a message.
type Author struct {
	PatientID uuid.UUID
	Name      string
}

type CreateConversationRequest struct {
	ProviderID     string `json:"providerId"`
	Subject        string `json:"subject"`
	InitialMessage string `json:"initialMessage"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}
