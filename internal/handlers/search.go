package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

func (h *ProductHandler) Search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}

	page, size := pageParams(c)
	total, items, err := h.Catalog.Search(c.Request().Context(), q, page, size)
	if err != nil {
		return httpError(c, err)
	}
	return list(c, page, size, total, items)
}
