// Package middleware holds the echo middleware shared by every route group.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	apperrors "library/internal/errors"
)

// RequestID tags every request with a uuid X-Request-ID.
func RequestID() echo.MiddlewareFunc {
	return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	})
}

// Slog writes one structured line per request.
func Slog(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Resolve the final status before logging it.
				c.Error(err)
			}

			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "http",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Path()),
				slog.Int("status", c.Response().Status),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
				slog.String("req_id", rid),
				slog.String("ip", c.RealIP()),
				slog.String("ua", c.Request().UserAgent()),
			)
			return nil
		}
	}
}

// RateLimit throttles callers by IP to perSecond requests, with a burst of
// twice that.
func RateLimit(perSecond float64) echo.MiddlewareFunc {
	burst := int(perSecond * 2)
	if burst < 1 {
		burst = 1
	}
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, apperrors.ErrorResponse{
				Error: "request was throttled",
				Code:  "THROTTLED",
			})
		},
		ErrorHandler: func(c echo.Context, _ error) error {
			return echo.NewHTTPError(http.StatusForbidden, apperrors.ErrorResponse{
				Error: "unable to identify caller",
				Code:  "PERMISSION_DENIED",
			})
		},
	})
}
