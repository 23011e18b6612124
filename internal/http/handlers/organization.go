package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/merchantops/merchantops/internal/admin"
)

func (h *Handlers) HandleOrganizationCreate(c *echo.Context) error {
	var req admin.OrganizationRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	resp, err := h.Admin.CreateOrganization(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleOrganizationRetrieve(c *echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	resp, err := h.Admin.GetOrganization(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleOrganizationUpdate(c *echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	var req admin.OrganizationRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	resp, err := h.Admin.UpdateOrganization(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
