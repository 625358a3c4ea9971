package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patientportal/portal/internal/platform/apperror"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func newContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestErrorHandler_AppError(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/api/messages/conversations/x/messages")
	h := ErrorHandler(zerolog.New(io.Discard))

	h(apperror.Forbidden("Access denied to this conversation"), c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	env := decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "Access denied to this conversation", env.Error)
}

func TestErrorHandler_InternalHidesCause(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/api/notifications")
	h := ErrorHandler(zerolog.New(io.Discard))

	h(apperror.Internal("Failed to fetch notifications", errors.New("pq: relation does not exist")), c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "Failed to fetch notifications", env.Error)
	assert.NotContains(t, rec.Body.String(), "relation")
}

func TestErrorHandler_LogsKindOfServerErrors(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newContext(http.MethodGet, "/api/notifications")
	h := ErrorHandler(zerolog.New(&buf))

	h(apperror.Internal("Failed to fetch notifications", errors.New("timeout")), c)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "internal", line["kind"])
	assert.Equal(t, "/api/notifications", line["path"])
}

func TestErrorHandler_UnclassifiedError(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/api/notifications")
	h := ErrorHandler(zerolog.New(io.Discard))

	h(errors.New("boom"), c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec).Error)
}

func TestErrorHandler_RouteNotFound(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/api/dashboard")
	h := ErrorHandler(zerolog.New(io.Discard))

	h(echo.ErrNotFound, c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Endpoint not found", decode(t, rec).Error)
}

func TestErrorHandler_MethodNotAllowedReportedAsNotFound(t *testing.T) {
	c, rec := newContext(http.MethodPatch, "/api/notifications")
	h := ErrorHandler(zerolog.New(io.Discard))

	h(echo.ErrMethodNotAllowed, c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorHandler_EchoHTTPErrorMessage(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/api/auth/login")
	h := ErrorHandler(zerolog.New(io.Discard))

	h(echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded"), c)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", decode(t, rec).Error)
}

func TestErrorHandler_ThroughRouter(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.New(io.Discard))
	e.GET("/api/ping", func(c echo.Context) error { return Message(c, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/api/missing", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Endpoint not found", decode(t, rec).Error)
}

type failingBody struct{ err error }

func (b failingBody) Read([]byte) (int, error) { return 0, b.err }

func bindContext(body io.Reader) echo.Context {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.ContentLength = -1
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestBind_KeepsBodyTooLarge(t *testing.T) {
	tooLarge := echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Request body too large")
	c := bindContext(failingBody{err: tooLarge})

	var v map[string]string
	err := Bind(c, &v)

	var he *echo.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusRequestEntityTooLarge, he.Code)
	status, msg := resolve(err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, "Request body too large", msg)
}

func TestBind_MalformedJSON(t *testing.T) {
	c := bindContext(strings.NewReader(`{"email":`))

	var v map[string]string
	err := Bind(c, &v)

	assert.True(t, apperror.Is(err, apperror.KindBadRequest))
}

func TestBind_ReadFailure(t *testing.T) {
	c := bindContext(failingBody{err: errors.New("connection reset")})

	var v map[string]string
	assert.True(t, apperror.Is(Bind(c, &v), apperror.KindBadRequest))
}

func TestBind_OK(t *testing.T) {
	c := bindContext(strings.NewReader(`{"email":"a@example.com"}`))

	var v map[string]string
	require.NoError(t, Bind(c, &v))
	assert.Equal(t, "a@example.com", v["email"])
}

func TestHelpers(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	require.NoError(t, OK(c, map[string]int{"unreadCount": 3}))
	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, map[string]interface{}{"unreadCount": float64(3)}, env.Data)

	c, rec = newContext(http.MethodPost, "/")
	require.NoError(t, Created(c, map[string]string{"id": "1"}, "Message sent successfully"))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Message sent successfully", decode(t, rec).Message)

	c, rec = newContext(http.MethodPut, "/")
	require.NoError(t, Message(c, "Conversation archived successfully"))
	env = decode(t, rec)
	assert.Nil(t, env.Data)
	assert.Empty(t, env.Error)
}
