package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/service"
)

type OrderHandler struct {
	Orders *service.OrderService
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	page, size := pageParams(c)
	total, orders, err := h.Orders.ListMine(c.Request().Context(), userID, page, size)
	if err != nil {
		return httpError(c, err)
	}
	return list(c, page, size, total, orders)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	o, err := h.Orders.Get(c.Request().Context(), userID, id)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	o, err := h.Orders.Cancel(c.Request().Context(), userID, id)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

// AdminListOrders lists orders of every user, filtered by ?status= when given.
func (h *OrderHandler) AdminListOrders(c echo.Context) error {
	page, size := pageParams(c)
	total, orders, err := h.Orders.ListAll(c.Request().Context(), c.QueryParam("status"), page, size)
	if err != nil {
		return httpError(c, err)
	}
	return list(c, page, size, total, orders)
}

func (h *OrderHandler) ShipOrder(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	o, err := h.Orders.Ship(c.Request().Context(), id)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}
