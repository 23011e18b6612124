package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/merchantops/merchantops/internal/admin"
)

func merchantAndConnector(c *echo.Context) (string, string, error) {
	merchantID, err := pathParam(c, "merchant_id")
	if err != nil {
		return "", "", err
	}
	mcaID, err := pathParam(c, "mca_id")
	if err != nil {
		return "", "", err
	}
	return merchantID, mcaID, nil
}

func (h *Handlers) HandleConnectorCreate(c *echo.Context) error {
	merchantID, err := pathParam(c, "merchant_id")
	if err != nil {
		return err
	}
	var req admin.ConnectorCreate
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	resp, err := h.Admin.CreateConnector(c.Request().Context(), merchantID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleConnectorList lists the accounts of a merchant, optionally limited to
// the profiles named by repeated profile_id parameters.
func (h *Handlers) HandleConnectorList(c *echo.Context) error {
	merchantID, err := pathParam(c, "merchant_id")
	if err != nil {
		return err
	}
	var profileIDs []string
	for _, id := range c.QueryParams()["profile_id"] {
		if id = strings.TrimSpace(id); id != "" {
			profileIDs = append(profileIDs, id)
		}
	}
	resp, err := h.Admin.ListConnectors(c.Request().Context(), merchantID, profileIDs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleConnectorRetrieve(c *echo.Context) error {
	merchantID, mcaID, err := merchantAndConnector(c)
	if err != nil {
		return err
	}
	resp, err := h.Admin.RetrieveConnector(c.Request().Context(), merchantID, mcaID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleConnectorUpdate(c *echo.Context) error {
	merchantID, mcaID, err := merchantAndConnector(c)
	if err != nil {
		return err
	}
	var req admin.ConnectorUpdate
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	profileID := strings.TrimSpace(c.QueryParam("profile_id"))
	resp, err := h.Admin.UpdateConnector(c.Request().Context(), merchantID, profileID, mcaID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleConnectorDelete(c *echo.Context) error {
	merchantID, mcaID, err := merchantAndConnector(c)
	if err != nil {
		return err
	}
	resp, err := h.Admin.DeleteConnector(c.Request().Context(), merchantID, mcaID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
