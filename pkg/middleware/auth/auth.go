package authmw

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	ctxToken  = "jwt"
)

// Refresher rotates a refresh token into a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*tokens.Pair, error)
}

// PermissionChecker reports whether a role carries a permission.
type PermissionChecker interface {
	HasPermission(ctx context.Context, role, permission string) (bool, error)
}

type Authenticator struct {
	secret    []byte
	refresher Refresher
}

func New(accessSecret []byte, refresher Refresher) *Authenticator {
	return &Authenticator{secret: accessSecret, refresher: refresher}
}

// RequireAuth accepts a bearer header or the access cookie. An expired or
// missing access token is replaced transparently when the refresh cookie is valid.
func (a *Authenticator) RequireAuth() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    a.secret,
		SigningMethod: "HS256",
		ContextKey:    ctxToken,
		TokenLookup:   "header:Authorization:Bearer ,cookie:" + tokens.AccessCookie,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(tokens.AccessClaims)
		},
		SuccessHandler: func(c echo.Context) {
			tok, ok := c.Get(ctxToken).(*jwt.Token)
			if !ok {
				return
			}
			if claims, ok := tok.Claims.(*tokens.AccessClaims); ok {
				_ = setUserContext(c, claims)
			}
		},
		ErrorHandler:           a.onError,
		ContinueOnIgnoredError: true,
	})
}

func (a *Authenticator) onError(c echo.Context, err error) error {
	l := logging.FromContext(c.Request().Context()).With("middleware", "auth")

	if raw := rawAccessToken(c); raw != "" {
		if _, pErr := tokens.AccessClaimsFromToken(raw, a.secret); !errors.Is(pErr, jwt.ErrTokenExpired) {
			l.Warn("access_token_invalid", "status", http.StatusUnauthorized, "error", err)
			clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}
	}

	rc, cErr := c.Cookie(tokens.RefreshCookie)
	if cErr != nil || rc.Value == "" || a.refresher == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	pair, rErr := a.refresher.Refresh(c.Request().Context(), rc.Value)
	if rErr != nil {
		l.Warn("auto_refresh_error", "status", http.StatusUnauthorized, "error", rErr)
		clearAuthCookies(c)
		return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	}

	claims, pErr := tokens.AccessClaimsFromToken(pair.AccessToken, a.secret)
	if pErr != nil {
		l.Error("auto_refresh_error", "status", http.StatusUnauthorized, "reason", "new access token invalid", "error", pErr)
		clearAuthCookies(c)
		return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	}
	for _, ck := range tokens.PairCookies(pair) {
		c.SetCookie(ck)
	}
	if err := setUserContext(c, claims); err != nil {
		return err
	}
	l.Debug("access_token_refreshed", "user_id", claims.Subject)
	return nil
}

// RequirePermission must run after RequireAuth.
func RequirePermission(checker PermissionChecker, permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			ok, err := checker.HasPermission(c.Request().Context(), role, permission)
			if err != nil {
				logging.FromContext(c.Request().Context()).Error("permission_check_error",
					"role", role, "permission", permission, "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
			}
			if !ok {
				return echo.NewHTTPError(http.StatusForbidden, "missing permission "+permission)
			}
			return next(c)
		}
	}
}

// UserID returns the authenticated user id put on the context by RequireAuth.
func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(CtxUserID).(uint)
	return id, ok && id != 0
}

func Role(c echo.Context) string {
	r, _ := c.Get(CtxRole).(string)
	return r
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) error {
	id, err := claims.UserID()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
	}
	c.Set(CtxUserID, id)
	c.Set(CtxRole, claims.Role)
	return nil
}

func rawAccessToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if ck, err := c.Cookie(tokens.AccessCookie); err == nil {
		return ck.Value
	}
	return ""
}

func clearAuthCookies(c echo.Context) {
	c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/"))
	c.SetCookie(tokens.DeleteCookie(tokens.RefreshCookie, "/"))
}
