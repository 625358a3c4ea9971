package notification

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeNewMessage  = "NewMessage"
	TypeAppointment = "Appointment"
	TypeReminder    = "Reminder"
)

var validTypes = map[string]bool{
	TypeNewMessage: true, TypeAppointment: true, TypeReminder: true,
}

// Notification maps to the notifications table.
type Notification struct {
	ID               uuid.UUID  `db:"notification_id" json:"NotificationId"`
	PatientID        uuid.UUID  `db:"patient_id" json:"PatientId"`
	Title            string     `db:"title" json:"Title"`
	Message          string     `db:"message" json:"Message"`
	Type             string     `db:"type" json:"Type"`
	IsRead           bool       `db:"is_read" json:"IsRead"`
	RelatedMessageID *uuid.UUID `db:"related_message_id" json:"RelatedMessageId,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"CreatedAt"`
}

// UnreadCount is the body of GET /notifications/unread-count.
type UnreadCount struct {
	UnreadCount int `json:"unreadCount"`
}
