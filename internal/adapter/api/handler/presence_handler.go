package handler

import (
	"github.com/labstack/echo/v4"

	"instapro/internal/adapter/api/middleware"
	"instapro/internal/usecase"
	"instapro/pkg/response"
)

type PresenceHandler struct {
	presenceUseCase *usecase.PresenceUseCase
}

func NewPresenceHandler(presenceUseCase *usecase.PresenceUseCase) *PresenceHandler {
	return &PresenceHandler{
		presenceUseCase: presenceUseCase,
	}
}

type setPresenceRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// SetPresence sets the caller's own activity flag.
func (h *PresenceHandler) SetPresence(c echo.Context) error {
	caller, err := middleware.CurrentIdentity(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req setPresenceRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	if err := h.presenceUseCase.SetActive(ctx, caller.Username, *req.Active); err != nil {
		return response.Error(c, err)
	}

	presence, err := h.presenceUseCase.Get(ctx, caller.Username)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, presence)
}

func (h *PresenceHandler) GetPresence(c echo.Context) error {
	presence, err := h.presenceUseCase.Get(c.Request().Context(), c.Param("username"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, presence)
}
