package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/merchantops/merchantops/internal/admin"
	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors"
	"github.com/merchantops/merchantops/internal/routing"
)

type activateRoutingRequest struct {
	AlgorithmID     string `json:"algorithm_id"`
	TransactionType string `json:"transaction_type"`
}

func merchantAndProfile(c *echo.Context) (string, string, error) {
	merchantID, err := pathParam(c, "merchant_id")
	if err != nil {
		return "", "", err
	}
	profileID, err := pathParam(c, "profile_id")
	if err != nil {
		return "", "", err
	}
	return merchantID, profileID, nil
}

func (h *Handlers) HandleProfileCreate(c *echo.Context) error {
	merchantID, err := pathParam(c, "merchant_id")
	if err != nil {
		return err
	}
	var req admin.BusinessProfileCreate
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	resp, err := h.Admin.CreateBusinessProfile(c.Request().Context(), merchantID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleProfileList(c *echo.Context) error {
	merchantID, err := pathParam(c, "merchant_id")
	if err != nil {
		return err
	}
	resp, err := h.Admin.ListBusinessProfiles(c.Request().Context(), merchantID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleProfileRetrieve(c *echo.Context) error {
	merchantID, profileID, err := merchantAndProfile(c)
	if err != nil {
		return err
	}
	resp, err := h.Admin.RetrieveBusinessProfile(c.Request().Context(), merchantID, profileID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleProfileUpdate(c *echo.Context) error {
	merchantID, profileID, err := merchantAndProfile(c)
	if err != nil {
		return err
	}
	var req admin.BusinessProfileUpdate
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	resp, err := h.Admin.UpdateBusinessProfile(c.Request().Context(), merchantID, profileID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleProfileDelete(c *echo.Context) error {
	merchantID, profileID, err := merchantAndProfile(c)
	if err != nil {
		return err
	}
	deleted, err := h.Admin.DeleteBusinessProfile(c.Request().Context(), merchantID, profileID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, deleted)
}

func (h *Handlers) HandleToggleExtendedCardInfo(c *echo.Context) error {
	merchantID, profileID, err := merchantAndProfile(c)
	if err != nil {
		return err
	}
	var req admin.ExtendedCardInfoChoice
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	resp, err := h.Admin.ToggleExtendedCardInfo(c.Request().Context(), merchantID, profileID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleToggleConnectorAgnosticMIT(c *echo.Context) error {
	merchantID, profileID, err := merchantAndProfile(c)
	if err != nil {
		return err
	}
	var req admin.ConnectorAgnosticMITChoice
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	resp, err := h.Admin.ToggleConnectorAgnosticMIT(c.Request().Context(), merchantID, profileID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleActivateRoutingAlgorithm(c *echo.Context) error {
	merchantID, profileID, err := merchantAndProfile(c)
	if err != nil {
		return err
	}
	var req activateRoutingRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	txn, err := connectors.ParseTransactionType(req.TransactionType)
	if err != nil {
		return apperr.InvalidDataValue("transaction_type")
	}
	resp, err := h.Admin.ActivateRoutingAlgorithm(c.Request().Context(), merchantID, profileID, strings.TrimSpace(req.AlgorithmID), txn)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleRoutingAlgorithmRetrieve(c *echo.Context) error {
	merchantID, profileID, err := merchantAndProfile(c)
	if err != nil {
		return err
	}
	txn, err := transactionType(c)
	if err != nil {
		return err
	}
	resp, err := h.Admin.GetProfileRoutingAlgorithm(c.Request().Context(), merchantID, profileID, txn)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleFallbackRoutingRetrieve(c *echo.Context) error {
	merchantID, profileID, err := merchantAndProfile(c)
	if err != nil {
		return err
	}
	txn, err := transactionType(c)
	if err != nil {
		return err
	}
	resp, err := h.Admin.GetProfileFallbackRouting(c.Request().Context(), merchantID, profileID, txn)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleFallbackRoutingUpdate(c *echo.Context) error {
	merchantID, profileID, err := merchantAndProfile(c)
	if err != nil {
		return err
	}
	txn, err := transactionType(c)
	if err != nil {
		return err
	}
	var req []routing.Choice
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	resp, err := h.Admin.UpdateProfileFallbackRouting(c.Request().Context(), merchantID, profileID, txn, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
