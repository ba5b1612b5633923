// Package middleware holds the HTTP middleware guarding authenticated
// routes.
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/letterstack/ms-go-account/app/apperror"
	"github.com/letterstack/ms-go-account/app/token"
)

const userIDKey = "user_id"

// RequireAuth validates the bearer access token and stores the caller's
// identity on the request context for handlers downstream.
func RequireAuth(codec *token.Codec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				return apperror.New(apperror.KindUnauthorized, []string{"Unauthorized"})
			}

			claims, err := codec.ParseAccess(tokenString)
			if err != nil {
				return apperror.New(apperror.KindUnauthorized, []string{"Unauthorized"})
			}

			c.Set(userIDKey, claims.UserID)
			return next(c)
		}
	}
}

// UserID returns the authenticated user's ID; zero when the route is not
// behind RequireAuth.
func UserID(c echo.Context) uint64 {
	id, _ := c.Get(userIDKey).(uint64)
	return id
}
