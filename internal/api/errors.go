package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/drawpad/internal/docstore"
	"github.com/tphakala/drawpad/internal/errors"
	"github.com/tphakala/drawpad/internal/logger"
)

// Error type labels for http_request_errors_total
const (
	errTypeBadRequest   = "bad_request"
	errTypeInvalidPath  = "invalid_path"
	errTypeNotFound     = "not_found"
	errTypeNotDirectory = "not_a_directory"
	errTypeConflict     = "conflict"
	errTypeCanceled     = "canceled"
	errTypeStorage      = "storage"
	errTypeMethod       = "method"
)

// statusFor maps store errors to an HTTP status and an error type label.
//
//	InvalidPath   400
//	NotFound      404
//	NotADirectory 400
//	AlreadyExists 409
//	anything else 500
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, docstore.ErrInvalidPath):
		return http.StatusBadRequest, errTypeInvalidPath
	case errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound, errTypeNotFound
	case errors.Is(err, docstore.ErrNotADirectory):
		return http.StatusBadRequest, errTypeNotDirectory
	case errors.Is(err, docstore.ErrAlreadyExists):
		return http.StatusConflict, errTypeConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errTypeCanceled
	default:
		return http.StatusInternalServerError, errTypeStorage
	}
}

// HandleError writes err as a plain text response with the mapped status.
func (c *Controller) HandleError(ctx echo.Context, err error) error {
	status, errType := statusFor(err)
	c.recordError(ctx, errType)

	fields := []logger.Field{
		logger.String("method", ctx.Request().Method),
		logger.String("uri", ctx.Request().RequestURI),
		logger.Int("status", status),
		logger.Error(err),
	}
	l := c.log.WithContext(requestContext(ctx))
	if status >= http.StatusInternalServerError {
		l.Error("Store request failed", fields...)
	} else {
		l.Debug("Store request rejected", fields...)
	}

	return ctx.String(status, err.Error())
}

// badRequest rejects a malformed request before it reaches the store.
func (c *Controller) badRequest(ctx echo.Context, message string) error {
	c.recordError(ctx, errTypeBadRequest)
	return ctx.String(http.StatusBadRequest, message)
}

func (c *Controller) recordError(ctx echo.Context, errType string) {
	if c.metrics != nil {
		c.metrics.RecordHTTPRequestError(ctx.Request().Method, ctx.Path(), errType)
	}
}

// methodNotAllowed answers every method not in allowed with 405 and an Allow header.
func (c *Controller) methodNotAllowed(allowed ...string) echo.HandlerFunc {
	allow := strings.Join(allowed, ", ")
	return func(ctx echo.Context) error {
		c.recordError(ctx, errTypeMethod)
		ctx.Response().Header().Set(echo.HeaderAllow, allow)
		return ctx.String(http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

// requestContext carries the request id into the logger trace field.
func requestContext(ctx echo.Context) context.Context {
	id := ctx.Response().Header().Get(echo.HeaderXRequestID)
	return logger.WithTraceID(ctx.Request().Context(), id)
}
