package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"instapro/internal/domain/entity"
	"instapro/internal/domain/service"
	"instapro/internal/usecase"
	"instapro/pkg/errors"
	"instapro/pkg/logger"
	"instapro/pkg/response"
)

const (
	uidKey      = "uid"
	identityKey = "identity"
)

type AuthMiddleware struct {
	verifier  service.TokenVerifier
	directory *usecase.DirectoryUseCase
}

func NewAuthMiddleware(verifier service.TokenVerifier, directory *usecase.DirectoryUseCase) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:  verifier,
		directory: directory,
	}
}

// Authenticate verifies the bearer token and resolves the caller's
// username. Browsers cannot set headers on a websocket handshake, so a
// "token" query parameter is accepted as well.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		idToken, err := bearerToken(c)
		if err != nil {
			return response.Error(c, err)
		}

		ctx := c.Request().Context()
		uid, err := m.verifier.VerifyToken(ctx, idToken)
		if err != nil {
			logger.Debug("Authenticate Error: %v", err)
			return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
		}

		identity, err := m.directory.Identity(ctx, uid)
		if err != nil {
			return response.Error(c, err)
		}

		c.Set(uidKey, uid)
		c.Set(identityKey, identity)

		return next(c)
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if token := c.QueryParam("token"); token != "" {
			return token, nil
		}
		return "", errors.Unauthorized("Authorization header is required", nil)
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.Unauthorized("Invalid authorization format", nil)
	}
	return parts[1], nil
}

// CurrentIdentity returns the caller resolved by Authenticate.
func CurrentIdentity(c echo.Context) (entity.Identity, error) {
	identity, ok := c.Get(identityKey).(entity.Identity)
	if !ok {
		return entity.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return identity, nil
}
