package notification

import (
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
	g := api.Group("/notifications", requireAuth)
	g.GET("", h.List)
	g.GET("/unread-count", h.UnreadCount)
	g.PUT("/mark-all-read", h.MarkAllRead)
	g.PUT("/:notificationId/read", h.MarkRead)
	g.DELETE("/:notificationId", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), p.PatientID)
	if err != nil {
		return apperror.Wrap(err, "Failed to fetch notifications")
	}
	return envelope.OK(c, items)
}

func (h *Handler) UnreadCount(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}
	count, err := h.svc.UnreadCount(c.Request().Context(), p.PatientID)
	if err != nil {
		return apperror.Wrap(err, "Failed to fetch unread count")
	}
	return envelope.OK(c, count)
}

func (h *Handler) MarkRead(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("notificationId"))
	if err != nil {
		return apperror.BadRequest("invalid id")
	}
	if err := h.svc.MarkRead(c.Request().Context(), p.PatientID, id); err != nil {
		return apperror.Wrap(err, "Failed to mark notification as read")
	}
	return envelope.Message(c, "Notification marked as read")
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}
	if err := h.svc.MarkAllRead(c.Request().Context(), p.PatientID); err != nil {
		return apperror.Wrap(err, "Failed to mark all notifications as read")
	}
	return envelope.Message(c, "All notifications marked as read")
}

func (h *Handler) Delete(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("notificationId"))
	if err != nil {
		return apperror.BadRequest("invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), p.PatientID, id); err != nil {
		return apperror.Wrap(err, "Failed to delete notification")
	}
	return envelope.Message(c, "Notification deleted successfully")
}
