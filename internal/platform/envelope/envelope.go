// Package envelope renders every API response in the uniform
// {success, data, message, error} wrapper the portal client expects.
package envelope

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/patientportal/portal/internal/platform/apperror"
)

// Envelope is the response wrapper shared by all endpoints.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

const (
	msgEndpointNotFound = "Endpoint not found"
	msgInternal         = "Internal server error"
)

// OK writes a 200 envelope carrying data.
func OK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 envelope carrying data and a status message.
func Created(c echo.Context, data interface{}, message string) error {
	return c.JSON(http.StatusCreated, Envelope{Success: true, Data: data, Message: message})
}

// Message writes a 200 envelope with only a status message.
func Message(c echo.Context, message string) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Message: message})
}

// WithMessage writes a 200 envelope carrying data and a status message.
func WithMessage(c echo.Context, data interface{}, message string) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Message: message})
}

// Fail writes an error envelope with the given status.
func Fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, Envelope{Success: false, Error: msg})
}

// ErrorHandler returns an echo.HTTPErrorHandler that translates
// *apperror.Error and *echo.HTTPError values into envelopes. Internal causes
// are logged and replaced by their generic client message.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, msg := resolve(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().
				Err(err).
				Str("kind", string(apperror.KindOf(err))).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = Fail(c, status, msg)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}

// Bind decodes the request body into v. A body cut off by the body limit
// keeps its 413; any other bind failure is a 400.
func Bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		if he := bodyTooLarge(err); he != nil {
			return he
		}
		return apperror.BadRequest("invalid request body")
	}
	return nil
}

// bodyTooLarge walks the echo error chain, since the binder wraps the
// reader's error in its own 400.
func bodyTooLarge(err error) *echo.HTTPError {
	for err != nil {
		var he *echo.HTTPError
		if !errors.As(err, &he) {
			return nil
		}
		if he.Code == http.StatusRequestEntityTooLarge {
			return he
		}
		err = he.Internal
	}
	return nil
}

func resolve(err error) (int, string) {
	var ae *apperror.Error
	if errors.As(err, &ae) {
		return ae.Status(), ae.Message
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			return http.StatusNotFound, msgEndpointNotFound
		}
		if he.Code >= http.StatusInternalServerError {
			return he.Code, msgInternal
		}
		if s, ok := he.Message.(string); ok && s != "" {
			return he.Code, s
		}
		if he.Message != nil {
			return he.Code, fmt.Sprint(he.Message)
		}
		return he.Code, http.StatusText(he.Code)
	}

	return http.StatusInternalServerError, msgInternal
}
