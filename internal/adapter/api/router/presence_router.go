package router

import (
	"github.com/labstack/echo/v4"

	"instapro/internal/adapter/api/handler"
	"instapro/internal/adapter/api/middleware"
)

func SetupPresenceRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	presenceHandler := handler.GetPresenceHandler()

	presence := e.Group("/v1/presence")
	presence.Use(authMiddleware.Authenticate)
	presence.PUT("", presenceHandler.SetPresence)
	presence.GET("/:username", presenceHandler.GetPresence)
}
