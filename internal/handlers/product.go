package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/service"
)

type ProductHandler struct {
	Catalog *service.CatalogService
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.Catalog.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page, size := pageParams(c)
	total, items, err := h.Catalog.List(c.Request().Context(), c.QueryParam("q"), page, size)
	if err != nil {
		return httpError(c, err)
	}
	return list(c, page, size, total, items)
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req productRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.Catalog.Create(c.Request().Context(), service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	})
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *ProductHandler) PatchProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req productPatchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.Catalog.Update(c.Request().Context(), id, service.ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	})
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Catalog.Delete(c.Request().Context(), id); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ProductHandler) UploadImage(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read upload")
	}
	defer f.Close()

	p, err := h.Catalog.UploadImage(c.Request().Context(), id, fh.Filename, fh.Size, f)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
