package main

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/handlers"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/paypal"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/search"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/storage"
	httpserver "github.com/Skotchmaster/storefront/internal/transport/http"
	authmw "github.com/Skotchmaster/storefront/pkg/middleware/auth"
)

type publisher interface {
	service.EventPublisher
	Close() error
}

// application holds the services of one process and the clients they share.
type application struct {
	repo    *repo.GormRepo
	events  publisher
	auth    *service.AuthService
	admin   *service.AdminService
	catalog *service.CatalogService
	cart    *service.CartService
	orders  *service.OrderService
	users   *service.UserService
	pay     *service.PaymentService
}

// build wires the optional integrations. Search and storage problems at
// startup are logged and the process keeps running without them.
func build(ctx context.Context, cfg *config.Config, log *slog.Logger, db *gorm.DB) (*application, error) {
	r := repo.New(db)

	var events publisher = mykafka.Nop{}
	if cfg.KafkaEnabled() {
		events = mykafka.NewProducer(cfg.KafkaBrokers)
		log.Info("kafka_enabled", "brokers", cfg.KafkaBrokers)
	}

	catalog := &service.CatalogService{Repo: r, Events: events}
	users := &service.UserService{Repo: r, Events: events}
	pay := &service.PaymentService{Repo: r, Events: events}

	if cfg.SearchEnabled() {
		ix, err := search.New(search.Config{
			URL:      cfg.ESURL,
			User:     cfg.ESUser,
			Password: cfg.ESPassword,
			Index:    cfg.ESIndex,
		})
		if err != nil {
			return nil, err
		}
		if err := ix.EnsureIndex(ctx); err != nil {
			log.Warn("search_index_unavailable", "reason", "falling back to database search", "error", err)
		}
		catalog.Index = ix
	}

	if cfg.StorageEnabled() {
		up, mc, err := storage.New(storage.Config{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			Bucket:    cfg.StorageBucket,
			UseSSL:    cfg.StorageUseSSL,
			PublicURL: cfg.StoragePublicURL,
		})
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureBucket(ctx, mc, cfg.StorageBucket); err != nil {
			log.Warn("storage_bucket_unavailable", "bucket", cfg.StorageBucket, "error", err)
		}
		catalog.Uploader = up
		users.Uploader = up
	}

	if cfg.PayPalEnabled() {
		pay.Provider = paypal.New(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalClientSecret, 15*time.Second)
	}

	return &application{
		repo:   r,
		events: events,
		auth: &service.AuthService{
			Repo:          r,
			AccessSecret:  []byte(cfg.JWTSecret),
			RefreshSecret: []byte(cfg.JWTRefreshSecret),
			AccessTTL:     cfg.AccessTTL,
			RefreshTTL:    cfg.RefreshTTL,
			Events:        events,
		},
		admin:   &service.AdminService{Repo: r},
		catalog: catalog,
		cart:    &service.CartService{Repo: r, Events: events},
		orders:  &service.OrderService{Repo: r, Events: events},
		users:   users,
		pay:     pay,
	}, nil
}

func (a *application) deps(cfg *config.Config) *httpserver.Deps {
	return &httpserver.Deps{
		Repo:           a.repo,
		Auth:           authmw.New(a.auth.AccessSecret, a.auth),
		Permissions:    a.admin,
		AuthHandler:    &handlers.AuthHandler{Auth: a.auth},
		UserHandler:    &handlers.UserHandler{Users: a.users},
		ProductHandler: &handlers.ProductHandler{Catalog: a.catalog},
		CartHandler:    &handlers.CartHandler{Cart: a.cart, Orders: a.orders},
		OrderHandler:   &handlers.OrderHandler{Orders: a.orders},
		PaymentHandler: &handlers.PaymentHandler{Payments: a.pay},
		AdminHandler:   &handlers.AdminHandler{Admin: a.admin},
		AuthRateLimit:  cfg.AuthRateLimit,
	}
}

func (a *application) Close() error { return a.events.Close() }
