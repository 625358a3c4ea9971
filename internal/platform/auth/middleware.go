package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/patientportal/portal/internal/platform/apperror"
)

type contextKey string

const principalKey contextKey = "principal"

// ErrPatientInactive is returned by a PatientResolver when the token's
// patient no longer exists or has been deactivated.
var ErrPatientInactive = errors.New("patient not found or inactive")

// Principal is the authenticated patient attached to a request.
type Principal struct {
	PatientID uuid.UUID
	Email     string
	FirstName string
	LastName  string
	TokenID   string
	ExpiresAt time.Time
}

// PatientResolver loads the active patient a token refers to.
type PatientResolver interface {
	ResolvePatient(ctx context.Context, id uuid.UUID) (*Principal, error)
}

// TokenVerifier validates a bearer token.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// BearerConfig configures BearerMiddleware.
type BearerConfig struct {
	Tokens   TokenVerifier
	Patients PatientResolver
	// Revoked is optional; tokens it reports are rejected like expired ones.
	Revoked *RevocationList
	Skipper middleware.Skipper
}

// BearerMiddleware authenticates requests carrying "Authorization: Bearer
// <token>". A missing or malformed header is 401, a token that fails
// verification is 403, and a token whose patient is gone or inactive is 401.
func BearerMiddleware(cfg BearerConfig) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = middleware.DefaultSkipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}

			tokenStr, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return apperror.Unauthorized("Access token required")
			}

			claims, err := cfg.Tokens.Verify(tokenStr)
			if err != nil {
				return apperror.Forbidden("Invalid or expired token")
			}
			if cfg.Revoked != nil && cfg.Revoked.IsRevoked(claims.ID) {
				return apperror.Forbidden("Invalid or expired token")
			}

			ctx := c.Request().Context()
			p, err := cfg.Patients.ResolvePatient(ctx, claims.PatientUUID())
			if errors.Is(err, ErrPatientInactive) {
				return apperror.Unauthorized("Patient not found or inactive")
			}
			if err != nil {
				return apperror.Internal("Authentication failed", err)
			}

			p.TokenID = claims.ID
			if claims.ExpiresAt != nil {
				p.ExpiresAt = claims.ExpiresAt.Time
			}
			c.Set("patient_id", p.PatientID.String())
			c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, p)))

			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated patient, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// RequirePrincipal returns the authenticated patient or an Unauthorized error
// when the route was reached without passing BearerMiddleware.
func RequirePrincipal(c echo.Context) (*Principal, error) {
	p := PrincipalFromContext(c.Request().Context())
	if p == nil {
		return nil, apperror.Unauthorized("Not authenticated")
	}
	return p, nil
}
