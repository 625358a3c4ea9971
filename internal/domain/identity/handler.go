package identity

import (
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

// RegisterRoutes mounts the /auth routes. requireAuth must let login and
// register through (see auth.AuthSkipper); limitCredentials throttles them.
func (h *Handler) RegisterRoutes(api *echo.Group, requireAuth, limitCredentials echo.MiddlewareFunc) {
	g := api.Group("/auth", requireAuth)
	g.POST("/login", h.Login, limitCredentials)
	g.POST("/register", h.Register, limitCredentials)
	g.GET("/profile", h.Profile)
	g.POST("/logout", h.Logout)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := envelope.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return envelope.WithMessage(c, res, "Login successful")
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := envelope.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return envelope.Created(c, res, "Registration successful")
}

func (h *Handler) Profile(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}
	profile, err := h.svc.Profile(c.Request().Context(), p.PatientID)
	if err != nil {
		return apperror.Wrap(err, "Failed to get profile")
	}
	return envelope.OK(c, profile)
}

func (h *Handler) Logout(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}
	h.svc.Logout(p)
	return envelope.Message(c, "Logout successful")
}
