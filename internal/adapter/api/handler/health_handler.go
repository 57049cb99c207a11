package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// StoreCheck reports whether the backing store answers.
type StoreCheck func(ctx context.Context) error

type HealthHandler struct {
	backend string
	check   StoreCheck
}

var healthHandler *HealthHandler

func NewHealthHandler(backend string, check StoreCheck) *HealthHandler {
	return &HealthHandler{
		backend: backend,
		check:   check,
	}
}

func SetupHealthHandler(backend string, check StoreCheck) {
	healthHandler = NewHealthHandler(backend, check)
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "Server is running",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *HealthHandler) CheckStoreHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if h.check != nil {
		if err := h.check(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "Store connection failed",
				"backend": h.backend,
				"error":   err.Error(),
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "Store connected successfully",
		"backend": h.backend,
	})
}
