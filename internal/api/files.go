package api

import (
	"net/http"

	"github.com/antonholmquist/jason"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/drawpad/internal/docstore"
	"github.com/tphakala/drawpad/internal/drawing"
)

// ListFiles handles GET /api/files?dir=&q=. dir defaults to the root; q
// filters names case-insensitively.
func (c *Controller) ListFiles(ctx echo.Context) error {
	dir := ctx.QueryParam("dir")
	if dir == "" {
		dir = "/"
	}

	entries, err := c.store.List(ctx.Request().Context(), dir, docstore.ListOptions{
		Filter: ctx.QueryParam("q"),
	})
	if err != nil {
		return c.HandleError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, entries)
}

// CreateFile handles POST /api/files with body {path, template?}. The file is
// only created when absent.
func (c *Controller) CreateFile(ctx echo.Context) error {
	body, err := jason.NewObjectFromReader(ctx.Request().Body)
	if err != nil {
		return c.badRequest(ctx, "path required")
	}

	virtual, err := body.GetString("path")
	if err != nil || virtual == "" {
		return c.badRequest(ctx, "path required")
	}

	template, err := templateFrom(body)
	if err != nil {
		return c.badRequest(ctx, "invalid template: "+err.Error())
	}

	if err := c.store.CreateExclusive(ctx.Request().Context(), virtual, template); err != nil {
		return c.HandleError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, OKResponse{OK: true})
}

// templateFrom extracts the optional template; absent or null means blank.
func templateFrom(body *jason.Object) (*drawing.Document, error) {
	value, err := body.GetValue("template")
	if err != nil || value.Null() == nil {
		return nil, nil
	}
	raw, err := value.Marshal()
	if err != nil {
		return nil, err
	}
	return drawing.Decode(raw)
}
