package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service"
)

type CartHandler struct {
	Cart   *service.CartService
	Orders *service.OrderService
}

type checkoutResponse struct {
	Orders []models.Order  `json:"orders"`
	Total  decimal.Decimal `json:"total"`
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	cart, err := h.Cart.GetCart(c.Request().Context(), userID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req addToCartRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, err := h.Cart.AddToCart(c.Request().Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	itemID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req cartQuantityRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	item, err := h.Cart.UpdateQuantity(c.Request().Context(), userID, itemID, req.Quantity)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) DeleteItem(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	itemID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Cart.RemoveItem(c.Request().Context(), userID, itemID); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	removed, err := h.Cart.ClearCart(c.Request().Context(), userID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"removed": removed})
}

func (h *CartHandler) Checkout(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	orders, err := h.Orders.Checkout(c.Request().Context(), userID)
	if err != nil {
		return httpError(c, err)
	}

	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.TotalAmount)
	}
	return c.JSON(http.StatusCreated, checkoutResponse{Orders: orders, Total: total})
}
