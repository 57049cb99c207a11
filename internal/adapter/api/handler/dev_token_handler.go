package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"instapro/internal/domain/entity"
	"instapro/internal/usecase"
	"instapro/pkg/errors"
	"instapro/pkg/response"
)

const devTokenTTL = 30 * 24 * time.Hour

// TokenIssuer signs local development tokens.
type TokenIssuer interface {
	Issue(uid string, ttl time.Duration) (string, error)
}

// ProfileSeeder stores profiles directly. Only the in-memory directory
// supports it.
type ProfileSeeder interface {
	Put(user *entity.User) error
}

type DevTokenHandler struct {
	issuer    TokenIssuer
	directory *usecase.DirectoryUseCase
	seeder    ProfileSeeder
}

var devTokenHandler *DevTokenHandler

func NewDevTokenHandler(issuer TokenIssuer, directory *usecase.DirectoryUseCase, seeder ProfileSeeder) *DevTokenHandler {
	return &DevTokenHandler{
		issuer:    issuer,
		directory: directory,
		seeder:    seeder,
	}
}

func SetupDevTokenHandler(issuer TokenIssuer, directory *usecase.DirectoryUseCase, seeder ProfileSeeder) {
	devTokenHandler = NewDevTokenHandler(issuer, directory, seeder)
}

func GetDevTokenHandler() *DevTokenHandler {
	return devTokenHandler
}

type seedUserRequest struct {
	Username  string `json:"username" validate:"required,username"`
	Fullname  string `json:"fullname" validate:"max=100"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
}

// GenerateUserToken issues a long lived token for an existing profile.
func (h *DevTokenHandler) GenerateUserToken(c echo.Context) error {
	user, err := h.directory.LookupByUsername(c.Request().Context(), c.Param("username"))
	if err != nil {
		return response.Error(c, err)
	}

	token, err := h.issuer.Issue(user.UID, devTokenTTL)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to sign token", err))
	}

	return response.Success(c, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// SeedUser creates a profile with uid "dev-<username>" and returns a token
// for it.
func (h *DevTokenHandler) SeedUser(c echo.Context) error {
	if h.seeder == nil {
		return response.Error(c, errors.BadRequest("Profiles can only be seeded on the memory store", nil))
	}

	var req seedUserRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	user := &entity.User{
		UID:       "dev-" + req.Username,
		Username:  req.Username,
		Fullname:  req.Fullname,
		AvatarURL: req.AvatarURL,
	}
	if err := h.seeder.Put(user); err != nil {
		return response.Error(c, err)
	}

	token, err := h.issuer.Issue(user.UID, devTokenTTL)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to sign token", err))
	}
	return response.Created(c, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}
