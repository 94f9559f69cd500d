package api

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/drawpad/internal/docstore"
	"github.com/tphakala/drawpad/internal/drawing"
	"github.com/tphakala/drawpad/internal/logger"
	"github.com/tphakala/drawpad/internal/observability/metrics"
)

// routableMethods are the methods the 405 fallbacks are registered for
var routableMethods = []string{
	http.MethodConnect,
	http.MethodDelete,
	http.MethodGet,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPatch,
	http.MethodPost,
	http.MethodPut,
	http.MethodTrace,
	echo.PROPFIND,
	echo.REPORT,
}

// DocumentResponse wraps a document returned by GET /api/drawing.
type DocumentResponse struct {
	Data *drawing.Document `json:"data"`
}

// OKResponse acknowledges a successful write.
type OKResponse struct {
	OK bool `json:"ok"`
}

// Controller serves the drawing and files resources.
type Controller struct {
	store   *docstore.Store
	metrics *metrics.HTTPMetrics
	log     logger.Logger
}

// NewController creates the resource handlers. m may be nil.
func NewController(store *docstore.Store, m *metrics.HTTPMetrics, log logger.Logger) *Controller {
	if log == nil {
		log = GetLogger()
	}
	return &Controller{store: store, metrics: m, log: log}
}

// RegisterRoutes mounts both resources on g.
func (c *Controller) RegisterRoutes(g *echo.Group) {
	g.GET("/drawing", c.GetDrawing)
	g.PUT("/drawing", c.PutDrawing)
	g.Match(otherMethods(http.MethodGet, http.MethodPut), "/drawing",
		c.methodNotAllowed(http.MethodGet, http.MethodPut))

	g.GET("/files", c.ListFiles)
	g.POST("/files", c.CreateFile)
	g.Match(otherMethods(http.MethodGet, http.MethodPost), "/files",
		c.methodNotAllowed(http.MethodGet, http.MethodPost))
}

func otherMethods(allowed ...string) []string {
	return slices.DeleteFunc(slices.Clone(routableMethods), func(m string) bool {
		return slices.Contains(allowed, m)
	})
}
