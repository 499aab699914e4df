package middleware // package middleware holds the Echo middleware shared by every route group

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/utils"
)

// AuthCookie is the cookie the web client sends the access token in.
const AuthCookie = "auth-token"

// JWTAuth validates the access token from the Authorization header or the
// auth-token cookie and stores the user id and role in the context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearer(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing access token", "code": "unauthorized"})
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "unauthorized"})
			}
			c.Set(KeyUserID, claims.UserID)
			c.Set(KeyRole, claims.Role)
			return next(c)
		}
	}
}

// OptionalJWT behaves like JWTAuth but lets anonymous requests through.
// A token that is present but invalid is still rejected.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	auth := JWTAuth(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withAuth := auth(next)
		return func(c echo.Context) error {
			if bearer(c) == "" {
				return next(c)
			}
			return withAuth(c)
		}
	}
}

func bearer(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if ck, err := c.Cookie(AuthCookie); err == nil {
		return ck.Value
	}
	return ""
}
