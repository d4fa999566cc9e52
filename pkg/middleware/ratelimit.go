package middleware

import (
	"net/http"
	"time"

	"options-analytics/internal/dto"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// NewRateLimiterMiddleware throttles clients per IP. Rate limit state
// expires after 3 minutes of inactivity.
func NewRateLimiterMiddleware(requestsPerSecond rate.Limit, burst int) echo.MiddlewareFunc {
	config := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      requestsPerSecond,
				Burst:     burst,
				ExpiresIn: 3 * time.Minute,
			},
		),

		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			id := ctx.RealIP()
			return id, nil
		},

		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(http.StatusForbidden,
				dto.NewBaseResponse(http.StatusForbidden, "Access forbidden: Rate limiter error occurred", nil))
		},

		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(http.StatusTooManyRequests,
				dto.NewBaseResponse(http.StatusTooManyRequests, "Too many requests: Rate limit exceeded. Please try again later", nil))
		},
	}

	return middleware.RateLimiterWithConfig(config)
}
