package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/service"
)

type AdminHandler struct {
	Admin *service.AdminService
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	page, size := pageParams(c)
	total, users, err := h.Admin.ListUsers(c.Request().Context(), page, size)
	if err != nil {
		return httpError(c, err)
	}
	return list(c, page, size, total, users)
}

func (h *AdminHandler) ListRoles(c echo.Context) error {
	roles, err := h.Admin.ListRoles(c.Request().Context())
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": roles})
}

func (h *AdminHandler) CreateRole(c echo.Context) error {
	var req roleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	role, err := h.Admin.CreateRole(c.Request().Context(), req.Name)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, role)
}

func (h *AdminHandler) GrantPermission(c echo.Context) error {
	roleID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req permissionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.Admin.GrantPermission(c.Request().Context(), roleID, req.Permission); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) RevokePermission(c echo.Context) error {
	roleID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Admin.RevokePermission(c.Request().Context(), roleID, c.Param("permission")); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) AssignRole(c echo.Context) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req assignRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.Admin.AssignRole(c.Request().Context(), userID, req.RoleID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
