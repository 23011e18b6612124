package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/merchantops/merchantops/internal/apperr"
)

type kvToggleRequest struct {
	KVEnabled *bool `json:"kv_enabled"`
}

func (r kvToggleRequest) enabled() (bool, error) {
	if r.KVEnabled == nil {
		return false, apperr.MissingField("kv_enabled")
	}
	return *r.KVEnabled, nil
}

func (h *Handlers) HandleKVToggle(c *echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	var req kvToggleRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	enable, err := req.enabled()
	if err != nil {
		return err
	}
	resp, err := h.Admin.ToggleKV(c.Request().Context(), id, enable)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleKVStatus(c *echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	resp, err := h.Admin.KVStatus(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleKVToggleAll(c *echo.Context) error {
	var req kvToggleRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	enable, err := req.enabled()
	if err != nil {
		return err
	}
	resp, err := h.Admin.ToggleKVForAll(c.Request().Context(), enable)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
