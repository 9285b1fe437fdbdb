package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/service"
)

type UserHandler struct {
	Users *service.UserService
}

func (h *UserHandler) Me(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	u, err := h.Users.Profile(c.Request().Context(), userID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) UpdateMe(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req profileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	u, err := h.Users.UpdateProfile(c.Request().Context(), userID, service.ProfileUpdate{
		Username:        req.Username,
		Password:        req.Password,
		CurrentPassword: req.CurrentPassword,
	})
	if err != nil {
		return httpError(c, err)
	}
	if req.Password != nil {
		// every session was revoked, the client has to log in again
		clearPair(c)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) UploadAvatar(c echo.Context) error {
	userID, err := currentUser(c)
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

	u, err := h.Users.UploadAvatar(c.Request().Context(), userID, fh.Filename, fh.Size, f)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
