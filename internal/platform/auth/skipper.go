package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths reachable without a bearer token.
var publicPaths = map[string]bool{
	"/api/health":        true,
	"/api/auth/login":    true,
	"/api/auth/register": true,
}

// AuthSkipper returns true for requests whose matched route is public. Pass it
// as BearerConfig.Skipper when the middleware guards a group that mixes public
// and protected routes.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

// IsPublicPath reports whether the given route path bypasses authentication.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
