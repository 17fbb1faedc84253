package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-order-api/internal/apperr"
	"marketplace-order-api/internal/auth"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(authorization string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusOK) }

func TestAuthenticate(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 15*time.Minute)
	token, _, err := jwtService.GenerateAccessToken("user-1", "buyer@example.com", auth.RoleBuyer)
	require.NoError(t, err)

	mw := Authenticate(jwtService)

	t.Run("valid token sets claims", func(t *testing.T) {
		c := newContext("Bearer " + token)
		err := mw(func(c echo.Context) error {
			claims := ClaimsFrom(c)
			require.NotNil(t, claims)
			assert.Equal(t, "user-1", claims.UserID)
			return nil
		})(c)
		assert.NoError(t, err)
	})

	t.Run("missing header", func(t *testing.T) {
		err := mw(okHandler)(newContext(""))
		require.Error(t, err)
		assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	})

	t.Run("malformed token", func(t *testing.T) {
		err := mw(okHandler)(newContext("Bearer garbage"))
		require.Error(t, err)
		assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	})
}

func TestRequire(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 15*time.Minute)
	authed := Authenticate(jwtService)

	buyerToken, _, err := jwtService.GenerateAccessToken("user-1", "buyer@example.com", auth.RoleBuyer)
	require.NoError(t, err)
	adminToken, _, err := jwtService.GenerateAccessToken("user-2", "admin@example.com", auth.RoleAdmin)
	require.NoError(t, err)

	confirm := authed(Require(auth.CapabilityConfirmPayment)(okHandler))

	err = confirm(newContext("Bearer " + buyerToken))
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	assert.NoError(t, confirm(newContext("Bearer "+adminToken)))
}

func TestRequire_WithoutAuthenticate(t *testing.T) {
	err := Require(auth.CapabilityPlaceOrder)(okHandler)(newContext(""))
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}
