package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/service"
)

type PaymentHandler struct {
	Payments *service.PaymentService
}

func (h *PaymentHandler) Capture(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req captureRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	p, err := h.Payments.Capture(c.Request().Context(), userID, req.OrderID, req.ProviderOrderID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *PaymentHandler) ProviderOrder(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	o, err := h.Payments.ProviderOrder(c.Request().Context(), userID, c.Param("providerOrderId"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}
