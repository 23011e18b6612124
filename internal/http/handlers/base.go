// Package handlers contains the admin API handlers split by resource.
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/merchantops/merchantops/internal/admin"
	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors"
)

const (
	// ContextKeyRequestID stores the request id (X-Request-ID) for logging and client error references.
	ContextKeyRequestID = "request_id"

	// InternalErrorCode is a stable error code safe to return to clients.
	InternalErrorCode = "INTERNAL_ERROR"
)

// Handlers groups all HTTP handlers and shared dependencies.
type Handlers struct {
	Admin *admin.Service
}

// ErrorBody is the JSON envelope of every classified error.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`

	Connector       string `json:"connector,omitempty"`
	ConnectorCode   string `json:"connector_code,omitempty"`
	ConnectorStatus int    `json:"connector_status_code,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// HandleHealthz reports liveness.
func (h *Handlers) HandleHealthz(c *echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// RenderAppError writes a classified error as JSON. Internal errors are
// rendered generically.
func (h *Handlers) RenderAppError(c *echo.Context, err *apperr.Error) error {
	if err == nil || err.Kind == apperr.KindInternal {
		return h.RenderError(c, err)
	}
	return c.JSON(err.StatusCode(), ErrorBody{Error: ErrorDetail{
		Type:            string(err.Kind),
		Code:            err.Code,
		Message:         err.Message,
		Field:           err.Field,
		Connector:       err.Connector,
		ConnectorCode:   err.ConnectorCode,
		ConnectorStatus: err.ConnectorStatus,
		Reason:          err.Reason,
	}})
}

// RenderError logs err and returns a generic internal error response.
func (h *Handlers) RenderError(c *echo.Context, err error) error {
	requestID, _ := c.Get(ContextKeyRequestID).(string)
	path := ""
	if req := c.Request(); req != nil && req.URL != nil {
		path = req.URL.Path
	}
	method := ""
	if req := c.Request(); req != nil {
		method = req.Method
	}
	c.Logger().Error("http error",
		"request_id", requestID,
		"method", method,
		"path", path,
		"ip", c.RealIP(),
		"error", err,
	)

	msg := "Internal server error."
	if requestID != "" {
		msg = fmt.Sprintf("%s Reference: %s.", msg, requestID)
	}
	msg = fmt.Sprintf("%s Code: %s.", msg, InternalErrorCode)
	return c.JSON(http.StatusInternalServerError, ErrorBody{Error: ErrorDetail{
		Type:    string(apperr.KindInternal),
		Code:    InternalErrorCode,
		Message: msg,
	}})
}

// RenderNotFound returns a 404 response for unknown routes.
func RenderNotFound(c *echo.Context) error {
	return c.String(http.StatusNotFound, "404 page not found")
}

// bindJSON decodes the request body into v. Decoding failures are client errors.
func bindJSON(c *echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.InvalidRequest("request body is not valid JSON")
	}
	return nil
}

func pathParam(c *echo.Context, name string) (string, error) {
	v := strings.TrimSpace(c.Param(name))
	if v == "" {
		return "", apperr.MissingField(name)
	}
	return v, nil
}

// transactionType reads the transaction_type query parameter.
func transactionType(c *echo.Context) (connectors.TransactionType, error) {
	txn, err := connectors.ParseTransactionType(c.QueryParam("transaction_type"))
	if err != nil {
		return "", apperr.InvalidDataValue("transaction_type")
	}
	return txn, nil
}
