package router

import (
	"github.com/labstack/echo/v4"

	"instapro/internal/adapter/api/handler"
)

// SetupDevRouter exposes token helpers in development only.
func SetupDevRouter(e *echo.Echo, environment string) {
	devTokenHandler := handler.GetDevTokenHandler()
	if environment != "development" || devTokenHandler == nil {
		return
	}

	e.GET("/_dev/token/:username", devTokenHandler.GenerateUserToken)
	e.POST("/_dev/users", devTokenHandler.SeedUser)
}
