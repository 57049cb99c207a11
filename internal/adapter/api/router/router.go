package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"instapro/internal/adapter/api/middleware"
	"instapro/internal/infrastructure/ratelimit"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	SetupUserRouter(e, authMiddleware)
	SetupPresenceRouter(e, authMiddleware)
	SetupUploadRouter(e, authMiddleware, limiter)
	SetupHealthRouter(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
