package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/Skotchmaster/storefront/internal/handlers"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	authmw "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type Deps struct {
	Repo        *repo.GormRepo
	Auth        *authmw.Authenticator
	Permissions authmw.PermissionChecker

	AuthHandler    *handlers.AuthHandler
	UserHandler    *handlers.UserHandler
	ProductHandler *handlers.ProductHandler
	CartHandler    *handlers.CartHandler
	OrderHandler   *handlers.OrderHandler
	PaymentHandler *handlers.PaymentHandler
	AdminHandler   *handlers.AdminHandler

	// AuthRateLimit is requests per second per client IP on login and register. Zero disables it.
	AuthRateLimit float64
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if err := d.Repo.Ping(c.Request().Context()); err != nil {
			logging.FromContext(c.Request().Context()).Warn("readiness_failed", "error", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	v1 := e.Group("/api/v1")

	authGroup := v1.Group("/auth")
	limited := []echo.MiddlewareFunc{}
	if d.AuthRateLimit > 0 {
		limited = append(limited, authRateLimiter(d.AuthRateLimit))
	}
	authGroup.POST("/register", d.AuthHandler.Register, limited...)
	authGroup.POST("/login", d.AuthHandler.Login, limited...)
	authGroup.POST("/refresh", d.AuthHandler.Refresh)
	authGroup.POST("/logout", d.AuthHandler.LogOut)

	products := v1.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/search", d.ProductHandler.Search)
	products.GET("/:id", d.ProductHandler.GetProduct)

	requireAuth := d.Auth.RequireAuth()

	users := v1.Group("/users/me", requireAuth)
	users.GET("", d.UserHandler.Me)
	users.PATCH("", d.UserHandler.UpdateMe)
	users.POST("/avatar", d.UserHandler.UploadAvatar)

	cart := v1.Group("/cart", requireAuth)
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("", d.CartHandler.AddToCart)
	cart.DELETE("", d.CartHandler.ClearCart)
	cart.POST("/checkout", d.CartHandler.Checkout)
	cart.PATCH("/:id", d.CartHandler.UpdateItem)
	cart.DELETE("/:id", d.CartHandler.DeleteItem)

	orders := v1.Group("/orders", requireAuth)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.POST("/:id/cancel", d.OrderHandler.CancelOrder)

	payments := v1.Group("/payments", requireAuth)
	payments.POST("/capture", d.PaymentHandler.Capture)
	payments.GET("/orders/:providerOrderId", d.PaymentHandler.ProviderOrder)

	admin := v1.Group("/admin", requireAuth)
	can := func(perm string) echo.MiddlewareFunc { return authmw.RequirePermission(d.Permissions, perm) }

	admin.POST("/products", d.ProductHandler.CreateProduct, can(models.PermProductsWrite))
	admin.PATCH("/products/:id", d.ProductHandler.PatchProduct, can(models.PermProductsWrite))
	admin.DELETE("/products/:id", d.ProductHandler.DeleteProduct, can(models.PermProductsWrite))
	admin.POST("/products/:id/image", d.ProductHandler.UploadImage, can(models.PermProductsWrite))

	admin.GET("/orders", d.OrderHandler.AdminListOrders, can(models.PermOrdersRead))
	admin.POST("/orders/:id/ship", d.OrderHandler.ShipOrder, can(models.PermOrdersShip))

	admin.GET("/users", d.AdminHandler.ListUsers, can(models.PermUsersRead))
	admin.PUT("/users/:id/role", d.AdminHandler.AssignRole, can(models.PermRolesManage))
	admin.GET("/roles", d.AdminHandler.ListRoles, can(models.PermRolesManage))
	admin.POST("/roles", d.AdminHandler.CreateRole, can(models.PermRolesManage))
	admin.POST("/roles/:id/permissions", d.AdminHandler.GrantPermission, can(models.PermRolesManage))
	admin.DELETE("/roles/:id/permissions/:permission", d.AdminHandler.RevokePermission, can(models.PermRolesManage))
}

func authRateLimiter(perSecond float64) echo.MiddlewareFunc {
	burst := int(perSecond * 2)
	if burst < 1 {
		burst = 1
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:  rate.Limit(perSecond),
		Burst: burst,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			logging.FromContext(c.Request().Context()).Warn("rate_limited", "identifier", identifier)
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		},
	})
}
