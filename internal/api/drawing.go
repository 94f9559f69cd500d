package api

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/drawpad/internal/drawing"
)

const pathRequiredMessage = "path must be absolute like /team/foo.excalidraw"

// GetDrawing handles GET /api/drawing?path=. A missing document is returned
// as the blank document.
func (c *Controller) GetDrawing(ctx echo.Context) error {
	virtual := ctx.QueryParam("path")
	if !strings.HasPrefix(virtual, "/") {
		return c.badRequest(ctx, pathRequiredMessage)
	}

	doc, err := c.store.ReadOrDefault(ctx.Request().Context(), virtual)
	if err != nil {
		return c.HandleError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, DocumentResponse{Data: doc})
}

// PutDrawing handles PUT /api/drawing?path=. The body is the whole document;
// an empty or null body writes the blank document.
func (c *Controller) PutDrawing(ctx echo.Context) error {
	virtual := ctx.QueryParam("path")
	if !strings.HasPrefix(virtual, "/") {
		return c.badRequest(ctx, pathRequiredMessage)
	}

	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		// Body limit middleware reports oversize bodies as an HTTPError
		return err
	}

	doc, err := decodeOptionalDocument(body)
	if err != nil {
		return c.badRequest(ctx, "invalid drawing document: "+err.Error())
	}

	if err := c.store.Write(ctx.Request().Context(), virtual, doc); err != nil {
		return c.HandleError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, OKResponse{OK: true})
}

// decodeOptionalDocument returns nil for an empty or null body.
func decodeOptionalDocument(body []byte) (*drawing.Document, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	return drawing.Decode(trimmed)
}
