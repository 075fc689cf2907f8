package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taskboard/api/internal/infrastructure/logger"
	"github.com/taskboard/api/internal/ports"
)

const (
	userIDKey    = "user_id"
	userEmailKey = "user_email"
)

// Protect requires a valid bearer access token and puts the caller's
// identity on the echo context
func Protect(authService ports.AuthService, log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, no token")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			claims, err := authService.ValidateToken(tokenString)
			if err != nil {
				log.LogSecurityEvent("invalid_token", c.RealIP(), map[string]interface{}{
					"error": err.Error(),
					"path":  c.Request().URL.Path,
				})
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, token failed")
			}

			c.Set(userIDKey, claims.UserID)
			c.Set(userEmailKey, claims.Email)

			return next(c)
		}
	}
}

// UserIDFromContext returns the authenticated user id, or 0 outside Protect
func UserIDFromContext(c echo.Context) int64 {
	id, ok := c.Get(userIDKey).(int64)
	if !ok {
		return 0
	}
	return id
}
