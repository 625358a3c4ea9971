package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/patientportal/portal/internal/platform/auth"
)

// AuditEntry records one access to patient messaging data.
type AuditEntry struct {
	PatientID  string
	Action     string // read, create, update, delete
	Resource   string // conversations, messages, providers, notifications
	ResourceID string
	Method     string
	Path       string
	RemoteIP   string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries in addition to the log line.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc adapts a function to AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// LogRecorder writes each entry to its own logger, typically one backed by a
// dedicated audit file.
func LogRecorder(logger zerolog.Logger) AuditRecorder {
	return AuditRecorderFunc(func(entry AuditEntry) error {
		logEntry(logger.Log().Time("accessed_at", entry.Timestamp), entry)
		return nil
	})
}

func logEntry(ev *zerolog.Event, entry AuditEntry) {
	ev.Str("type", "access_audit").
		Str("request_id", entry.RequestID).
		Str("patient_id", entry.PatientID).
		Str("action", entry.Action).
		Str("resource", entry.Resource).
		Str("resource_id", entry.ResourceID).
		Str("method", entry.Method).
		Str("path", entry.Path).
		Str("remote_ip", entry.RemoteIP).
		Int("status", entry.StatusCode).
		Msg("patient_data_access")
}

var auditedPrefixes = []string{"/api/messages/", "/api/notifications"}

// Audit logs who touched which messaging or notification resource after the
// handler has run. Other paths pass through untouched.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			resource, id := extractResource(path)
			entry := AuditEntry{
				Action:     httpMethodToAction(c.Request().Method),
				Resource:   resource,
				ResourceID: id,
				Method:     c.Request().Method,
				Path:       path,
				RemoteIP:   c.RealIP(),
				StatusCode: c.Response().Status,
				Timestamp:  time.Now().UTC(),
			}
			if err != nil {
				entry.StatusCode = errorStatus(err, entry.StatusCode)
			}
			if p := auth.PrincipalFromContext(c.Request().Context()); p != nil {
				entry.PatientID = p.PatientID.String()
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logEntry(logger.Info(), entry)

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	for _, p := range auditedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResource returns the addressed collection and, when present, the
// id under it:
//
//	/api/messages/conversations/<id>/messages -> conversations, <id>
//	/api/messages/messages/<id>               -> messages, <id>
//	/api/notifications/<id>/read              -> notifications, <id>
//	/api/notifications/unread-count           -> notifications, ""
func extractResource(path string) (string, string) {
	rest := strings.TrimPrefix(path, "/api/")
	if after, ok := strings.CutPrefix(rest, "messages/"); ok {
		rest = after
	}
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "unknown", ""
	}
	if len(segments) > 1 && isUUIDLike(segments[1]) {
		return segments[0], segments[1]
	}
	return segments[0], ""
}

// isUUIDLike checks the 8-4-4-4-12 hex layout without parsing.
func isUUIDLike(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, c := range s {
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
				return false
			}
		}
	}
	return true
}
