package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/bytes"
	"github.com/patrickmn/go-cache"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/tphakala/drawpad/internal/logger"
)

const (
	// healthCacheTTL bounds how often /health queries the filesystem
	healthCacheTTL  = 10 * time.Second
	storageCacheKey = "storage"
)

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Timestamp     string         `json:"timestamp"`
	Storage       *StorageHealth `json:"storage,omitempty"`
}

// StorageHealth reports disk usage of the filesystem holding the storage root.
type StorageHealth struct {
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
	FreeHuman   string  `json:"free_human"`
	Error       string  `json:"error,omitempty"`
}

// healthCheck handles the server health check endpoint. An unreadable
// storage root makes the server unhealthy.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	resp := HealthResponse{
		Status:        "healthy",
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		Timestamp:     time.Now().Format(time.RFC3339),
	}

	if s.storageRoot != "" {
		storage, err := s.storageHealth(c)
		if err != nil {
			s.log.Warn("Storage root disk usage unavailable", logger.Error(err))
			resp.Status = "unhealthy"
			resp.Storage = &StorageHealth{Error: "storage root unavailable"}
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
		resp.Storage = storage
	}

	return c.JSON(http.StatusOK, resp)
}

// storageHealth returns disk usage of the storage root. Successful results
// are cached for healthCacheTTL; failures are retried on the next probe.
func (s *Server) storageHealth(c echo.Context) (*StorageHealth, error) {
	if cached, found := s.healthCache.Get(storageCacheKey); found {
		if h, ok := cached.(*StorageHealth); ok {
			return h, nil
		}
	}

	usage, err := disk.UsageWithContext(c.Request().Context(), s.storageRoot)
	if err != nil {
		return nil, err
	}
	h := &StorageHealth{
		Total:       usage.Total,
		Free:        usage.Free,
		UsedPercent: usage.UsedPercent,
		FreeHuman:   bytes.Format(int64(usage.Free)), //nolint:gosec // disk sizes fit int64
	}
	s.healthCache.Set(storageCacheKey, h, cache.DefaultExpiration)
	return h, nil
}
