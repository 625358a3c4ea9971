package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/patientportal/portal/internal/platform/apperror"
	"github.com/patientportal/portal/internal/platform/auth"
)

type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// authenticatedHandler mimics the bearer middleware attaching a principal
// inside the audited chain.
func authenticatedHandler(patientID uuid.UUID, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p := &auth.Principal{PatientID: patientID}
		c.SetRequest(c.Request().WithContext(auth.WithPrincipal(c.Request().Context(), p)))
		return next(c)
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestAudit_ConversationRead(t *testing.T) {
	rec := &mockRecorder{}
	patient := uuid.New()
	conv := uuid.New()

	c, _ := newTestContext(http.MethodGet, "/api/messages/conversations/"+conv.String()+"/messages")
	c.Set("request_id", "req-1")
	h := Audit(zerolog.Nop(), rec)(authenticatedHandler(patient, okHandler))
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := rec.last()
	if entry.PatientID != patient.String() {
		t.Errorf("expected patient %s, got %q", patient, entry.PatientID)
	}
	if entry.Action != "read" || entry.Resource != "conversations" || entry.ResourceID != conv.String() {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.RequestID != "req-1" || entry.StatusCode != http.StatusOK {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestAudit_MessageDelete(t *testing.T) {
	rec := &mockRecorder{}
	msg := uuid.New()

	c, _ := newTestContext(http.MethodDelete, "/api/messages/messages/"+msg.String())
	if err := Audit(zerolog.Nop(), rec)(authenticatedHandler(uuid.New(), okHandler))(c); err != nil {
		t.Fatal(err)
	}
	entry := rec.last()
	if entry.Action != "delete" || entry.Resource != "messages" || entry.ResourceID != msg.String() {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestAudit_NotificationUnreadCount(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodGet, "/api/notifications/unread-count")
	if err := Audit(zerolog.Nop(), rec)(authenticatedHandler(uuid.New(), okHandler))(c); err != nil {
		t.Fatal(err)
	}
	entry := rec.last()
	if entry.Resource != "notifications" || entry.ResourceID != "" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestAudit_CapturesErrorStatus(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodPut, "/api/messages/conversations/"+uuid.NewString()+"/archive")
	denied := apperror.Forbidden("Access denied to this conversation")
	h := Audit(zerolog.Nop(), rec)(authenticatedHandler(uuid.New(), func(c echo.Context) error { return denied }))

	if err := h(c); !errors.Is(err, denied) {
		t.Fatalf("expected handler error to propagate, got %v", err)
	}
	if got := rec.last(); got.StatusCode != http.StatusForbidden || got.Action != "update" {
		t.Errorf("unexpected entry: %+v", got)
	}
}

func TestAudit_SkipsOtherPaths(t *testing.T) {
	rec := &mockRecorder{}
	for _, path := range []string{"/api/health", "/api/auth/login", "/api/messagesx"} {
		c, _ := newTestContext(http.MethodGet, path)
		if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
			t.Fatal(err)
		}
	}
	if rec.count() != 0 {
		t.Errorf("expected no audit entries, got %d", rec.count())
	}
}

func TestAudit_RecorderErrorDoesNotBreakRequest(t *testing.T) {
	rec := &mockRecorder{err: errors.New("disk full")}
	c, httpRec := newTestContext(http.MethodGet, "/api/notifications")
	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if httpRec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", httpRec.Code)
	}
}

func TestAudit_LogLine(t *testing.T) {
	var buf bytes.Buffer
	patient := uuid.New()
	c, _ := newTestContext(http.MethodPost, "/api/messages/conversations")
	if err := Audit(zerolog.New(&buf))(authenticatedHandler(patient, okHandler))(c); err != nil {
		t.Fatal(err)
	}

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["patient_id"] != patient.String() || line["action"] != "create" || line["resource"] != "conversations" {
		t.Errorf("unexpected log line: %v", line)
	}
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	patient := uuid.New()
	c, _ := newTestContext(http.MethodPut, "/api/notifications/mark-all-read")
	h := Audit(zerolog.Nop(), LogRecorder(zerolog.New(&buf)))(authenticatedHandler(patient, okHandler))
	if err := h(c); err != nil {
		t.Fatal(err)
	}

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode audit line: %v (%s)", err, buf.String())
	}
	if line["patient_id"] != patient.String() || line["action"] != "update" || line["type"] != "access_audit" {
		t.Errorf("unexpected audit line: %v", line)
	}
	if _, ok := line["accessed_at"]; !ok {
		t.Error("expected accessed_at timestamp")
	}
}

func TestAuditRecorderFunc(t *testing.T) {
	var got AuditEntry
	f := AuditRecorderFunc(func(e AuditEntry) error { got = e; return nil })
	if err := f.RecordAccess(AuditEntry{Resource: "messages"}); err != nil {
		t.Fatal(err)
	}
	if got.Resource != "messages" {
		t.Errorf("expected entry to be passed through, got %+v", got)
	}
}

func TestExtractResource(t *testing.T) {
	id := uuid.NewString()
	tests := []struct {
		path, resource, id string
	}{
		{"/api/messages/conversations", "conversations", ""},
		{"/api/messages/conversations/" + id + "/read", "conversations", id},
		{"/api/messages/providers", "providers", ""},
		{"/api/notifications", "notifications", ""},
		{"/api/notifications/" + id, "notifications", id},
		{"/api/notifications/mark-all-read", "notifications", ""},
	}
	for _, tt := range tests {
		res, rid := extractResource(tt.path)
		if res != tt.resource || rid != tt.id {
			t.Errorf("extractResource(%q) = (%q, %q), want (%q, %q)", tt.path, res, rid, tt.resource, tt.id)
		}
	}
}

func TestIsUUIDLike(t *testing.T) {
	if !isUUIDLike(uuid.NewString()) {
		t.Error("expected generated uuid to match")
	}
	for _, s := range []string{"", "unread-count", "zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz"} {
		if isUUIDLike(s) {
			t.Errorf("expected %q not to match", s)
		}
	}
}
