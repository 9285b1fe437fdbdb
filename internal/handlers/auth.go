package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

type AuthHandler struct {
	Auth *service.AuthService
}

type tokenResponse struct {
	AccessToken      string       `json:"access_token"`
	RefreshToken     string       `json:"refresh_token"`
	AccessExpiresAt  time.Time    `json:"access_expires_at"`
	RefreshExpiresAt time.Time    `json:"refresh_expires_at"`
	User             *models.User `json:"user,omitempty"`
}

func setPair(c echo.Context, p *tokens.Pair) {
	for _, ck := range tokens.PairCookies(p) {
		c.SetCookie(ck)
	}
}

func clearPair(c echo.Context) {
	c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/"))
	c.SetCookie(tokens.DeleteCookie(tokens.RefreshCookie, "/"))
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.Auth.Register(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	pair, user, err := h.Auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return httpError(c, err)
	}
	setPair(c, pair)

	logging.FromContext(c.Request().Context()).Info("user_logged_in", "user_id", user.ID)
	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExp,
		RefreshExpiresAt: pair.RefreshExp,
		User:             user,
	})
}

// Refresh takes the refresh token from the cookie, or from the body for
// clients that do not keep cookies.
func (h *AuthHandler) Refresh(c echo.Context) error {
	token := refreshToken(c)
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh token")
	}

	pair, err := h.Auth.Refresh(c.Request().Context(), token)
	if err != nil {
		clearPair(c)
		return httpError(c, err)
	}
	setPair(c, pair)
	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExp,
		RefreshExpiresAt: pair.RefreshExp,
	})
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	if err := h.Auth.Logout(c.Request().Context(), refreshToken(c)); err != nil {
		return httpError(c, err)
	}
	clearPair(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func refreshToken(c echo.Context) string {
	if ck, err := c.Cookie(tokens.RefreshCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return ""
	}
	return req.RefreshToken
}
