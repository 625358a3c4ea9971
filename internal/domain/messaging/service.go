package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/patientportal/portal/internal/domain/identity"
	"github.com/patientportal/portal/internal/platform/apperror"
	"github.com/patientportal/portal/internal/platform/authz"
	"github.com/patientportal/portal/internal/platform/db"
)

// ProviderDirectory looks up healthcare providers.
type ProviderDirectory interface {
	GetActive(ctx context.Context, id uuid.UUID) (*identity.Provider, error)
	ListActive(ctx context.Context) ([]*identity.Provider, error)
}

// ReadCascade propagates a conversation's read state to the patient's
// notifications.
type ReadCascade interface {
	MarkConversationRead(ctx context.Context, patientID, conversationID uuid.UUID) error
}

type Service struct {
	conversations ConversationRepository
	messages      MessageRepository
	providers     ProviderDirectory
	notifications ReadCascade
	tx            db.TxRunner
	guard         *authz.Guard
}

func NewService(
	conversations ConversationRepository,
	messages MessageRepository,
	providers ProviderDirectory,
	notifications ReadCascade,
	tx db.TxRunner,
	guard *authz.Guard,
) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		providers:     providers,
		notifications: notifications,
		tx:            tx,
		guard:         guard,
	}
}

// RegisterOwnership installs the conversation and authored-message rules on g.
func RegisterOwnership(g *authz.Guard, conversations ConversationRepository, messages MessageRepository) {
	g.Register(authz.KindConversation, "Access denied to this conversation", conversations.OwnedBy)
	g.Register(authz.KindAuthoredMessage, "Cannot delete this message", messages.AuthoredBy)
}

// -- Conversations --

func (s *Service) ListConversations(ctx context.Context, patientID uuid.UUID) ([]*Conversation, error) {
	return s.conversations.ListActiveByPatient(ctx, patientID)
}

// CreateConversation opens a conversation with an active provider and posts
// the initial message in one transaction.
func (s *Service) CreateConversation(ctx context.Context, author Author, req CreateConversationRequest) (*Conversation, error) {
	subject := strings.TrimSpace(req.Subject)
	initial := strings.TrimSpace(req.InitialMessage)
	if strings.TrimSpace(req.ProviderID) == "" || subject == "" || initial == "" {
		return nil, apperror.BadRequest("Provider ID, subject, and initial message are required")
	}
	providerID, err := uuid.Parse(strings.TrimSpace(req.ProviderID))
	if err != nil {
		return nil, apperror.BadRequest("invalid provider id")
	}

	provider, err := s.providers.GetActive(ctx, providerID)
	if errors.Is(err, identity.ErrNotFound) {
		return nil, apperror.NotFound("Healthcare provider not found")
	}
	if err != nil {
		return nil, err
	}

	conv := &Conversation{PatientID: author.PatientID, ProviderID: provider.ID, Subject: subject}
	first := &Message{SenderID: author.PatientID, SenderType: SenderPatient, Content: initial}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.conversations.Create(ctx, conv); err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		first.ConversationID = conv.ID
		if err := s.messages.Create(ctx, first); err != nil {
			return fmt.Errorf("create initial message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	conv.ProviderName = provider.FullName()
	conv.ProviderSpecialty = provider.Specialty
	conv.ProviderDepartment = provider.Department
	conv.LastMessage = &first.Content
	conv.LastMessageDate = &first.CreatedAt
	return conv, nil
}

// ArchiveConversation hides an owned conversation from the list.
func (s *Service) ArchiveConversation(ctx context.Context, patientID, conversationID uuid.UUID) error {
	if err := s.guard.Require(ctx, patientID, authz.KindConversation, conversationID); err != nil {
		return err
	}
	return s.conversations.Archive(ctx, conversationID)
}

// MarkConversationRead marks the provider's messages read and cascades to the
// patient's notifications about them, atomically. Calling it again is a
// no-op.
func (s *Service) MarkConversationRead(ctx context.Context, patientID, conversationID uuid.UUID) error {
	if err := s.guard.Require(ctx, patientID, authz.KindConversation, conversationID); err != nil {
		return err
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.messages.MarkProviderMessagesRead(ctx, conversationID); err != nil {
			return fmt.Errorf("mark messages read: %w", err)
		}
		if err := s.notifications.MarkConversationRead(ctx, patientID, conversationID); err != nil {
			return fmt.Errorf("mark notifications read: %w", err)
		}
		return nil
	})
}

// -- Messages --

func (s *Service) ListMessages(ctx context.Context, patientID, conversationID uuid.UUID) ([]*Message, error) {
	if err := s.guard.Require(ctx, patientID, authz.KindConversation, conversationID); err != nil {
		return nil, err
	}
	return s.messages.ListVisible(ctx, conversationID)
}

// SendMessage appends a patient message and bumps the conversation's update
// time in one transaction.
func (s *Service) SendMessage(ctx context.Context, author Author, conversationID uuid.UUID, req SendMessageRequest) (*Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperror.BadRequest("Message content is required")
	}
	if err := s.guard.Require(ctx, author.PatientID, authz.KindConversation, conversationID); err != nil {
		return nil, err
	}

	m := &Message{
		ConversationID: conversationID,
		SenderID:       author.PatientID,
		SenderType:     SenderPatient,
		Content:        content,
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.messages.Create(ctx, m); err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		if err := s.conversations.Touch(ctx, conversationID); err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.SenderName = author.Name
	return m, nil
}

// DeleteMessage soft-deletes a message the patient wrote.
func (s *Service) DeleteMessage(ctx context.Context, patientID, messageID uuid.UUID) error {
	if err := s.guard.Require(ctx, patientID, authz.KindAuthoredMessage, messageID); err != nil {
		return err
	}
	return s.messages.SoftDelete(ctx, messageID)
}

// -- Providers --

func (s *Service) ListProviders(ctx context.Context) ([]*identity.Provider, error) {
	return s.providers.ListActive(ctx)
}
