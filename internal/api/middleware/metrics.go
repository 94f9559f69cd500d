package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/drawpad/internal/observability/metrics"
)

// unmatchedRoute labels requests that did not hit a registered route, keeping
// label cardinality bounded.
const unmatchedRoute = "unmatched"

// NewMetrics records request counts, latency and response size per route template.
func NewMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			route := c.Path()
			if route == "" {
				route = unmatchedRoute
			}
			method := c.Request().Method
			m.RecordHTTPRequest(method, route, status, time.Since(start).Seconds())
			m.RecordHTTPResponseSize(method, route, c.Response().Size)

			return err
		}
	}
}
