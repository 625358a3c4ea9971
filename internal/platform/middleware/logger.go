package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger writes one access log line per request. Requests that ended in an
// error are logged at error level; echo has not yet rendered the error at
// this point, so the status is taken from the error when possible.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			status := c.Response().Status
			evt := logger.Info()
			if err != nil {
				status = errorStatus(err, status)
				evt = logger.Warn().Err(err)
				if status >= 500 {
					evt = logger.Error().Err(err)
				}
			}

			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}

type statusCoder interface{ Status() int }

func errorStatus(err error, fallback int) int {
	switch e := err.(type) {
	case *echo.HTTPError:
		return e.Code
	case statusCoder:
		return e.Status()
	}
	if fallback < 400 {
		return 500
	}
	return fallback
}
