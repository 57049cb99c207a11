package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_connections",
		Help: "Current number of active websocket connections",
	})
	OpenSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_open_sessions",
		Help: "Chat sessions currently in the ready state",
	})
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Messages appended, by content kind",
	}, []string{"kind"})
	MessagesRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_removed_total",
		Help: "Messages unsent by their author",
	})
	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_uploads_total",
		Help: "Finished upload jobs, by surface and terminal status",
	}, []string{"surface", "status"})
	UploadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_upload_bytes_total",
		Help: "Bytes written to object storage",
	})
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_notifications_total",
		Help: "Push notifications attempted, by result",
	}, []string{"result"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		WsConnections,
		OpenSessions,
		MessagesTotal,
		MessagesRemovedTotal,
		UploadsTotal,
		UploadBytes,
		NotificationsTotal,
		HttpRequestsTotal,
		HttpRequestDuration,
	)
}

// EchoMiddleware records request counts and latency per route.
func EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			labels := prometheus.Labels{
				"method": c.Request().Method,
				"path":   path,
				"status": strconv.Itoa(c.Response().Status),
			}
			HttpRequestsTotal.With(labels).Inc()
			HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
