package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/patientportal/portal/internal/platform/apperror"
	"github.com/patientportal/portal/internal/platform/authz"
)

type Service struct {
	repo  Repository
	guard *authz.Guard
}

func NewService(repo Repository, guard *authz.Guard) *Service {
	return &Service{repo: repo, guard: guard}
}

// List returns the patient's notifications, newest first.
func (s *Service) List(ctx context.Context, patientID uuid.UUID) ([]*Notification, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) UnreadCount(ctx context.Context, patientID uuid.UUID) (*UnreadCount, error) {
	n, err := s.repo.CountUnread(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &UnreadCount{UnreadCount: n}, nil
}

// MarkRead marks one owned notification read. Marking an already read
// notification succeeds.
func (s *Service) MarkRead(ctx context.Context, patientID, id uuid.UUID) error {
	if err := s.guard.Require(ctx, patientID, authz.KindNotification, id); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, patientID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, patientID uuid.UUID) error {
	_, err := s.repo.MarkAllRead(ctx, patientID)
	return err
}

// MarkConversationRead marks read every notification of the patient that
// refers to a message in the conversation. The caller has already checked
// conversation ownership.
func (s *Service) MarkConversationRead(ctx context.Context, patientID, conversationID uuid.UUID) error {
	_, err := s.repo.MarkReadByConversation(ctx, patientID, conversationID)
	return err
}

// Delete removes an owned notification.
func (s *Service) Delete(ctx context.Context, patientID, id uuid.UUID) error {
	if err := s.guard.Require(ctx, patientID, authz.KindNotification, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, patientID, id)
}

// PublishRequest describes a notification raised outside the patient API,
// for example by the admin CLI.
type PublishRequest struct {
	PatientID        uuid.UUID
	Title            string
	Message          string
	Type             string
	RelatedMessageID *uuid.UUID
}

// Publish stores a new unread notification for a patient.
func (s *Service) Publish(ctx context.Context, req PublishRequest) (*Notification, error) {
	n := &Notification{
		PatientID:        req.PatientID,
		Title:            strings.TrimSpace(req.Title),
		Message:          strings.TrimSpace(req.Message),
		Type:             req.Type,
		RelatedMessageID: req.RelatedMessageID,
	}
	if n.PatientID == uuid.Nil {
		return nil, apperror.BadRequest("patient id is required")
	}
	if n.Title == "" || n.Message == "" {
		return nil, apperror.BadRequest("title and message are required")
	}
	if n.Type == "" {
		n.Type = TypeNewMessage
	}
	if !validTypes[n.Type] {
		return nil, apperror.BadRequest(fmt.Sprintf("invalid notification type: %s", n.Type))
	}

	if err := s.repo.Create(ctx, n); err != nil {
		if errors.Is(err, ErrUnknownReference) {
			return nil, apperror.NotFound("patient or related message not found")
		}
		return nil, err
	}
	return n, nil
}

// RegisterOwnership installs the notification ownership rule on g.
func RegisterOwnership(g *authz.Guard, repo Repository) {
	g.Register(authz.KindNotification, "Notification not found", repo.OwnedBy)
}
