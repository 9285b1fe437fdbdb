package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/handlers"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/testutil"
	"github.com/Skotchmaster/storefront/internal/transport/validate"
	authmw "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

type uploader struct{}

func (uploader) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	return "https://cdn.test/" + key, nil
}

type app struct {
	e    *echo.Echo
	repo *repo.GormRepo
}

func newApp(t *testing.T) *app {
	t.Helper()
	db := testutil.NewDB(t)
	r := repo.New(db)
	events := mykafka.Nop{}

	authSvc := &service.AuthService{
		Repo: r, AccessSecret: []byte("access"), RefreshSecret: []byte("refresh"),
		AccessTTL: time.Minute, RefreshTTL: time.Hour, Events: events,
	}
	adminSvc := &service.AdminService{Repo: r}
	require.NoError(t, adminSvc.Seed(context.Background(), "admin", "adminpass1"))

	cartSvc := &service.CartService{Repo: r, Events: events}
	orderSvc := &service.OrderService{Repo: r, Events: events}

	e := echo.New()
	e.Validator = validate.New()
	e.Use(loggingmw.RequestLogger(logging.NewWithWriter(io.Discard, "error")))
	Register(e, &Deps{
		Repo:           r,
		Auth:           authmw.New(authSvc.AccessSecret, authSvc),
		Permissions:    adminSvc,
		AuthHandler:    &handlers.AuthHandler{Auth: authSvc},
		UserHandler:    &handlers.UserHandler{Users: &service.UserService{Repo: r, Uploader: uploader{}, Events: events}},
		ProductHandler: &handlers.ProductHandler{Catalog: &service.CatalogService{Repo: r, Uploader: uploader{}, Events: events}},
		CartHandler:    &handlers.CartHandler{Cart: cartSvc, Orders: orderSvc},
		OrderHandler:   &handlers.OrderHandler{Orders: orderSvc},
		PaymentHandler: &handlers.PaymentHandler{Payments: &service.PaymentService{Repo: r, Events: events}},
		AdminHandler:   &handlers.AdminHandler{Admin: adminSvc},
	})
	return &app{e: e, repo: r}
}

func (a *app) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *app) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.AccessToken
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/health/ready", "", nil).Code)
}

func TestAuthFlow(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "dora", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "dora", "password": "long-enough"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	u := decode[models.User](t, rec)
	assert.Equal(t, "dora", u.Username)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "dora", "password": "long-enough"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "dora", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "dora", "password": "long-enough"})
	require.Equal(t, http.StatusOK, rec.Code)
	var names []string
	var refresh string
	for _, ck := range rec.Result().Cookies() {
		names = append(names, ck.Name)
		if ck.Name == tokens.RefreshCookie {
			refresh = ck.Value
		}
	}
	assert.ElementsMatch(t, []string{tokens.AccessCookie, tokens.RefreshCookie}, names)

	// refresh via cookie
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: tokens.RefreshCookie, Value: refresh})
	rr := httptest.NewRecorder()
	a.e.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// the rotated token is spent
	rec = a.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCartCheckoutAndCancel(t *testing.T) {
	a := newApp(t)
	p := testutil.SeedProduct(t, a.repo.DB, "Lamp", "12.50", 10)
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"username": "erin", "password": "long-enough"}).Code)
	tok := a.login(t, "erin", "long-enough")

	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/api/v1/cart", "", nil).Code)

	rec := a.do(t, http.MethodPost, "/api/v1/cart", tok, map[string]any{"product_id": p.ID, "quantity": 11})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"remaining":10`)

	rec = a.do(t, http.MethodPost, "/api/v1/cart", tok, map[string]any{"product_id": p.ID, "quantity": 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[models.CartItem](t, rec)
	assert.Equal(t, 3, item.Quantity)

	rec = a.do(t, http.MethodGet, "/api/v1/cart", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[service.Cart](t, rec)
	assert.Equal(t, "37.50", cart.Total.StringFixed(2))

	rec = a.do(t, http.MethodPost, "/api/v1/cart/checkout", tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode[struct {
		Orders []models.Order `json:"orders"`
	}](t, rec)
	require.Len(t, out.Orders, 1)

	rec = a.do(t, http.MethodPost, "/api/v1/cart/checkout", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty cart")

	rec = a.do(t, http.MethodGet, "/api/v1/orders", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Data []models.Order `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}](t, rec)
	assert.Equal(t, int64(1), page.Meta.Total)

	orderPath := "/api/v1/orders/" + itoa(out.Orders[0].ID)
	rec = a.do(t, http.MethodPost, orderPath+"/cancel", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.OrderStatusCancelled, decode[models.Order](t, rec).Status)

	rec = a.do(t, http.MethodPost, orderPath+"/cancel", tok, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// Units in a cart are already taken from stock and checkout takes them again,
// so a cart holding the last units of a product cannot be checked out.
func TestCheckoutOfLastUnitsInCart(t *testing.T) {
	a := newApp(t)
	p := testutil.SeedProduct(t, a.repo.DB, "Vase", "10.00", 2)
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"username": "jill", "password": "long-enough"}).Code)
	tok := a.login(t, "jill", "long-enough")

	rec := a.do(t, http.MethodPost, "/api/v1/cart", tok, map[string]any{"product_id": p.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 0, testutil.Stock(t, a.repo.DB, p.ID))

	rec = a.do(t, http.MethodPost, "/api/v1/cart/checkout", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient stock")
	assert.Contains(t, rec.Body.String(), `"remaining":0`)

	rec = a.do(t, http.MethodGet, "/api/v1/cart", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[service.Cart](t, rec).Items, 1, "the cart survives the failed checkout")
	assert.Equal(t, 0, testutil.Stock(t, a.repo.DB, p.ID))

	rec = a.do(t, http.MethodGet, "/api/v1/orders", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[struct {
		Data []models.Order `json:"data"`
	}](t, rec).Data)

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodDelete, "/api/v1/cart", tok, nil).Code)
	assert.Equal(t, 2, testutil.Stock(t, a.repo.DB, p.ID), "clearing the cart releases the units")
}

func TestAdminRoutesRequirePermissions(t *testing.T) {
	a := newApp(t)
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"username": "frank", "password": "long-enough"}).Code)
	userTok := a.login(t, "frank", "long-enough")
	adminTok := a.login(t, "admin", "adminpass1")

	body := map[string]any{"name": "Desk", "price": "120.00", "stock": 2}
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPost, "/api/v1/admin/products", userTok, body).Code)

	rec := a.do(t, http.MethodPost, "/api/v1/admin/products", adminTok, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[models.Product](t, rec)

	rec = a.do(t, http.MethodGet, "/api/v1/products/"+itoa(p.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Desk", decode[models.Product](t, rec).Name)

	rec = a.do(t, http.MethodGet, "/api/v1/products/search?q=desk", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Desk")

	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/api/v1/products/search", "", nil).Code)

	rec = a.do(t, http.MethodGet, "/api/v1/admin/users?page=1&size=1", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	meta := decode[struct {
		Meta struct {
			Total   int64 `json:"total"`
			HasNext bool  `json:"has_next"`
		} `json:"meta"`
	}](t, rec).Meta
	assert.Equal(t, int64(2), meta.Total)
	assert.True(t, meta.HasNext)

	rec = a.do(t, http.MethodPost, "/api/v1/admin/roles", adminTok, map[string]string{"name": "support"})
	require.Equal(t, http.StatusCreated, rec.Code)
	role := decode[models.Role](t, rec)

	rec = a.do(t, http.MethodPost, "/api/v1/admin/roles/"+itoa(role.ID)+"/permissions", adminTok,
		map[string]string{"permission": models.PermOrdersRead})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/v1/products/999", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/api/v1/products/abc", "", nil).Code)
}

func TestShippedOrderCannotBeCancelled(t *testing.T) {
	a := newApp(t)
	p := testutil.SeedProduct(t, a.repo.DB, "Kettle", "30.00", 5)
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"username": "ivan", "password": "long-enough"}).Code)
	tok := a.login(t, "ivan", "long-enough")
	adminTok := a.login(t, "admin", "adminpass1")

	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/v1/cart", tok,
		map[string]any{"product_id": p.ID, "quantity": 1}).Code)
	rec := a.do(t, http.MethodPost, "/api/v1/cart/checkout", tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	orderID := itoa(decode[struct {
		Orders []models.Order `json:"orders"`
	}](t, rec).Orders[0].ID)

	rec = a.do(t, http.MethodGet, "/api/v1/admin/orders?status=pending", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		Data []models.Order `json:"data"`
	}](t, rec).Data, 1)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/api/v1/admin/orders?status=lost", adminTok, nil).Code)

	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPost, "/api/v1/admin/orders/"+orderID+"/ship", tok, nil).Code)

	rec = a.do(t, http.MethodPost, "/api/v1/admin/orders/"+orderID+"/ship", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.OrderStatusShipped, decode[models.Order](t, rec).Status)

	assert.Equal(t, http.StatusConflict, a.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", tok, nil).Code)
	assert.Equal(t, http.StatusConflict, a.do(t, http.MethodPost, "/api/v1/admin/orders/"+orderID+"/ship", adminTok, nil).Code)
}

func uploadAvatar(t *testing.T, a *app, tok, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h["Content-Disposition"] = []string{`form-data; name="file"; filename="me.png"`}
	h["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write(body)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/me/avatar", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func TestAvatarUpload(t *testing.T) {
	a := newApp(t)
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"username": "gina", "password": "long-enough"}).Code)
	tok := a.login(t, "gina", "long-enough")

	rec := uploadAvatar(t, a, tok, "image/png", []byte("<svg onload=alert(1)>"))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "declared type is not trusted")

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	rec = uploadAvatar(t, a, tok, "application/octet-stream", png)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, decode[models.User](t, rec).AvatarURL, "https://cdn.test/avatars/")
}

func TestPaymentsWithoutProvider(t *testing.T) {
	a := newApp(t)
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"username": "hank", "password": "long-enough"}).Code)
	tok := a.login(t, "hank", "long-enough")

	rec := a.do(t, http.MethodPost, "/api/v1/payments/capture", tok, map[string]any{"order_id": 1, "provider_order_id": "PP-1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/payments/capture", tok, map[string]any{"order_id": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRateLimit(t *testing.T) {
	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, authRateLimiter(0.5))
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func itoa(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
