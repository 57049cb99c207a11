package handler

import (
	"github.com/labstack/echo/v4"

	"instapro/internal/usecase"
	"instapro/pkg/response"
)

type UserHandler struct {
	directoryUseCase *usecase.DirectoryUseCase
}

func NewUserHandler(directoryUseCase *usecase.DirectoryUseCase) *UserHandler {
	return &UserHandler{
		directoryUseCase: directoryUseCase,
	}
}

// GetByUsername returns a directory profile.
func (h *UserHandler) GetByUsername(c echo.Context) error {
	user, err := h.directoryUseCase.LookupByUsername(c.Request().Context(), c.Param("username"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}
