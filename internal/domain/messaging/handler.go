package messaging

import (
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/patientportal/portal/internal/platform/apperror"
	"github.com/patientportal/portal/internal/platform/auth"
	"github.com/patientportal/portal/internal/platform/envelope"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, requireAuth echo.MiddlewareFunc) {
	g := api.Group("/messages", requireAuth)
	g.GET("/conversations", h.ListConversations)
	g.POST("/conversations", h.CreateConversation)
	g.PUT("/conversations/:conversationId/archive", h.ArchiveConversation)
	g.PUT("/conversations/:conversationId/read", h.MarkConversationRead)
	g.GET("/conversations/:conversationId/messages", h.ListMessages)
	g.POST("/conversations/:conversationId/messages", h.SendMessage)
	g.DELETE("/messages/:messageId", h.DeleteMessage)
	g.GET("/providers", h.ListProviders)
}

func author(p *auth.Principal) Author {
	return Author{PatientID: p.PatientID, Name: strings.TrimSpace(p.FirstName + " " + p.LastName)}
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.BadRequest("invalid id")
	}
	return id, nil
}

// -- Conversation Handlers --

func (h *Handler) ListConversations(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListConversations(c.Request().Context(), p.PatientID)
	if err != nil {
		return apperror.Wrap(err, "Failed to fetch conversations")
	}
	return envelope.OK(c, items)
}

func (h *Handler) CreateConversation(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}
	var req CreateConversationRequest
	if err := envelope.Bind(c, &req); err != nil {
		return err
	}
	conv, err := h.svc.CreateConversation(c.Request().Context(), author(p), req)
	if err != nil {
		return apperror.Wrap(err, "Failed to create conversation")
	}
	return envelope.Created(c, conv, "Conversation created successfully")
}

func (h *Handler) ArchiveConversation(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "conversationId")
	if err != nil {
		return err
	}
	if err := h.svc.ArchiveConversation(c.Request().Context(), p.PatientID, id); err != nil {
		return apperror.Wrap(err, "Failed to archive conversation")
	}
	return envelope.Message(c, "Conversation archived successfully")
}

func (h *Handler) MarkConversationRead(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "conversationId")
	if err != nil {
		return err
	}
	if err := h.svc.MarkConversationRead(c.Request().Context(), p.PatientID, id); err != nil {
		return apperror.Wrap(err, "Failed to mark messages as read")
	}
	return envelope.Message(c, "Messages marked as read")
}

// -- Message Handlers --

func (h *Handler) ListMessages(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "conversationId")
	if err != nil {
		return err
	}
	items, err := h.svc.ListMessages(c.Request().Context(), p.PatientID, id)
	if err != nil {
		return apperror.Wrap(err, "Failed to fetch messages")
	}
	return envelope.OK(c, items)
}

func (h *Handler) SendMessage(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "conversationId")
	if err != nil {
		return err
	}
	var req SendMessageRequest
	if err := envelope.Bind(c, &req); err != nil {
		return err
	}
	m, err := h.svc.SendMessage(c.Request().Context(), author(p), id, req)
	if err != nil {
		return apperror.Wrap(err, "Failed to send message")
	}
	return envelope.Created(c, m, "Message sent successfully")
}

func (h *Handler) DeleteMessage(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "messageId")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMessage(c.Request().Context(), p.PatientID, id); err != nil {
		return apperror.Wrap(err, "Failed to delete message")
	}
	return envelope.Message(c, "Message deleted successfully")
}

// -- Provider Handlers --

func (h *Handler) ListProviders(c echo.Context) error {
	if _, err := auth.RequirePrincipal(c); err != nil {
		return err
	}
	items, err := h.svc.ListProviders(c.Request().Context())
	if err != nil {
		return apperror.Wrap(err, "Failed to fetch providers")
	}
	return envelope.OK(c, items)
}
