package authmw

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/pkg/tokens"
)

var testSecret = []byte("access-secret")

type fakeRefresher struct {
	pair  *tokens.Pair
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(_ context.Context, _ string) (*tokens.Pair, error) {
	f.calls++
	return f.pair, f.err
}

type fakeChecker map[string][]string

func (f fakeChecker) HasPermission(_ context.Context, role, perm string) (bool, error) {
	for _, p := range f[role] {
		if p == perm {
			return true, nil
		}
	}
	return false, nil
}

func whoAmI(c echo.Context) error {
	id, ok := UserID(c)
	if !ok {
		return c.NoContent(http.StatusTeapot)
	}
	return c.JSON(http.StatusOK, map[string]any{"id": id, "role": Role(c)})
}

func newServer(r Refresher, checker PermissionChecker) *echo.Echo {
	e := echo.New()
	a := New(testSecret, r)
	e.GET("/me", whoAmI, a.RequireAuth())
	e.GET("/admin", whoAmI, a.RequireAuth(), RequirePermission(checker, "products:write"))
	return e
}

func sign(t *testing.T, id uint, role string, exp time.Time) string {
	t.Helper()
	tok, err := tokens.SignAccessToken(id, role, exp, testSecret)
	require.NoError(t, err)
	return tok
}

func TestRequireAuth_BearerHeader(t *testing.T) {
	e := newServer(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+sign(t, 7, "user", time.Now().Add(time.Minute)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"role":"user"}`, rec.Body.String())
}

func TestRequireAuth_Cookie(t *testing.T) {
	e := newServer(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: tokens.AccessCookie, Value: sign(t, 3, "admin", time.Now().Add(time.Minute))})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":3,"role":"admin"}`, rec.Body.String())
}

func TestRequireAuth_MissingToken(t *testing.T) {
	e := newServer(nil, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_BadSignature(t *testing.T) {
	r := &fakeRefresher{}
	e := newServer(r, nil)
	bad, err := tokens.SignAccessToken(1, "user", time.Now().Add(time.Minute), []byte("other"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+bad)
	req.AddCookie(&http.Cookie{Name: tokens.RefreshCookie, Value: "refresh"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, r.calls, "a forged token must not trigger a refresh")
}

func TestRequireAuth_ExpiredRefreshes(t *testing.T) {
	r := &fakeRefresher{pair: &tokens.Pair{
		AccessToken:  sign(t, 9, "user", time.Now().Add(time.Minute)),
		RefreshToken: "new-refresh",
		AccessExp:    time.Now().Add(time.Minute),
		RefreshExp:   time.Now().Add(time.Hour),
	}}
	e := newServer(r, nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: tokens.AccessCookie, Value: sign(t, 9, "user", time.Now().Add(-time.Minute))})
	req.AddCookie(&http.Cookie{Name: tokens.RefreshCookie, Value: "old-refresh"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, r.calls)
	assert.JSONEq(t, `{"id":9,"role":"user"}`, rec.Body.String())

	names := map[string]string{}
	for _, ck := range rec.Result().Cookies() {
		names[ck.Name] = ck.Value
	}
	assert.Equal(t, "new-refresh", names[tokens.RefreshCookie])
	assert.NotEmpty(t, names[tokens.AccessCookie])
}

func TestRequireAuth_RefreshFails(t *testing.T) {
	r := &fakeRefresher{err: errors.New("revoked")}
	e := newServer(r, nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: tokens.RefreshCookie, Value: "old-refresh"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, r.calls)
}

func TestRequirePermission(t *testing.T) {
	checker := fakeChecker{"admin": {"products:write"}}
	e := newServer(nil, checker)

	cases := []struct {
		role string
		want int
	}{
		{"admin", http.StatusOK},
		{"user", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+sign(t, 1, tc.role, time.Now().Add(time.Minute)))
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
