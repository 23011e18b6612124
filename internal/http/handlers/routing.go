package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/merchantops/merchantops/internal/apperr"
)

// HandleDefaultRouting returns the merchant-level default routing list.
func (h *Handlers) HandleDefaultRouting(c *echo.Context) error {
	merchantID := strings.TrimSpace(c.QueryParam("merchant_id"))
	if merchantID == "" {
		return apperr.MissingField("merchant_id")
	}
	txn, err := transactionType(c)
	if err != nil {
		return err
	}
	resp, err := h.Admin.GetDefaultRouting(c.Request().Context(), merchantID, txn)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
