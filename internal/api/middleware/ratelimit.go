package middleware

import (
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// rateLimitExpiry drops idle per-client limiters
const rateLimitExpiry = 3 * time.Minute

// NewMutationRateLimiter limits PUT, POST and other mutating requests per client
// IP to perSecond, with a burst of the same size. Reads are never limited.
// onLimit, when set, is called for every rejected request.
func NewMutationRateLimiter(perSecond float64, onLimit func()) echo.MiddlewareFunc {
	burst := max(1, int(math.Ceil(perSecond)))

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return true
			}
			return false
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(perSecond),
				Burst:     burst,
				ExpiresIn: rateLimitExpiry,
			},
		),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			if onLimit != nil {
				onLimit()
			}
			return c.String(http.StatusTooManyRequests, "Too Many Requests")
		},
	})
}
