package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/merchantops/merchantops/internal/admin"
	"github.com/merchantops/merchantops/internal/apperr"
)

func (h *Handlers) HandleMerchantCreate(c *echo.Context) error {
	var req admin.MerchantAccountCreate
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	resp, err := h.Admin.CreateMerchantAccount(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleMerchantList(c *echo.Context) error {
	orgID := strings.TrimSpace(c.QueryParam("organization_id"))
	if orgID == "" {
		return apperr.MissingField("organization_id")
	}
	resp, err := h.Admin.ListMerchantAccounts(c.Request().Context(), orgID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleMerchantRetrieve(c *echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	resp, err := h.Admin.GetMerchantAccount(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleMerchantUpdate(c *echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	var req admin.MerchantAccountUpdate
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	resp, err := h.Admin.UpdateMerchantAccount(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleMerchantDelete(c *echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	resp, err := h.Admin.DeleteMerchantAccount(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
