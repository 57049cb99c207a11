package router

import (
	"github.com/labstack/echo/v4"

	"instapro/internal/adapter/api/handler"
	"instapro/internal/adapter/api/middleware"
	"instapro/internal/infrastructure/ratelimit"
)

func SetupUploadRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	uploadHandler := handler.GetUploadHandler()

	uploads := e.Group("/v1/uploads")
	uploads.Use(authMiddleware.Authenticate)
	uploads.GET("", uploadHandler.ListUploads)
	uploads.POST("", uploadHandler.Upload, middleware.RateLimit(limiter, ratelimit.ActionUpload))
}
