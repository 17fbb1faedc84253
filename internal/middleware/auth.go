package middleware

import (
	"strings"

	"marketplace-order-api/internal/apperr"
	"marketplace-order-api/internal/auth"

	"github.com/labstack/echo/v4"
)

const claimsContextKey = "claims"

// Authenticate validates the bearer token and stores its claims on the
// echo context for downstream handlers.
func Authenticate(jwtService *auth.JWTService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return apperr.Authf("missing bearer token")
			}

			claims, err := jwtService.ValidateAccessToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return apperr.Wrap(apperr.KindAuth, err, "invalid token")
			}

			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

// Require gates a route on a capability instead of a role name.
func Require(capability auth.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := ClaimsFrom(c)
			if claims == nil {
				return apperr.Authf("missing bearer token")
			}
			if !auth.RoleAllows(claims.Role, capability) {
				return apperr.Forbiddenf("missing capability %s", capability)
			}
			return next(c)
		}
	}
}

// ClaimsFrom returns the authenticated claims, or nil outside Authenticate.
func ClaimsFrom(c echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsContextKey).(*auth.Claims)
	return claims
}
