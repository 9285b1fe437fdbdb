package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/migrations"
	"github.com/Skotchmaster/storefront/internal/models"
	httpserver "github.com/Skotchmaster/storefront/internal/transport/http"
	"github.com/Skotchmaster/storefront/internal/transport/validate"
	"github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "storefront",
		Usage: "online shop backend",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "env-file",
				Usage:   "dotenv files loaded before the environment",
				Value:   cli.NewStringSlice(".env"),
				EnvVars: []string{"ENV_FILE"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{Name: "serve", Usage: "run the HTTP API", Action: serve},
			{
				Name:  "migrate",
				Usage: "apply or roll back schema migrations",
				Subcommands: []*cli.Command{
					{Name: "up", Usage: "apply all pending migrations", Action: migrateUp},
					{Name: "down", Usage: "roll back the last migration", Action: migrateDown},
				},
			},
			{Name: "seed", Usage: "create default roles, permissions and the admin user", Action: seed},
			{Name: "reindex", Usage: "push every product into the search index", Action: reindex},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("exit", "error", err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(log)
	return cfg, log, nil
}

func openDB(ctx context.Context, cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	gdb, err := db.Open(ctx, cfg.DatabaseURL, cfg.DBOptions())
	if err != nil {
		return nil, err
	}
	if cfg.DBAutoMigrate {
		if err := gdb.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			_ = db.Close(gdb)
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("auto_migrate_completed")
	}
	return gdb, nil
}

func serve(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	ctx := logging.IntoContext(c.Context, log)

	gdb, err := openDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			log.Error("db_close_error", "error", err)
		}
	}()

	a, err := build(ctx, cfg, log, gdb)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("events_close_error", "error", err)
		}
	}()

	e := newEcho(cfg, log)
	httpserver.Register(e, a.deps(cfg))

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http_server_started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-t.C:
				n, err := a.repo.PurgeRefresh(gctx, now)
				if err != nil {
					log.Warn("refresh_purge_error", "error", err)
					continue
				}
				if n > 0 {
					log.Info("refresh_tokens_purged", "count", n)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown_complete")
	return nil
}

func newEcho(cfg *config.Config, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		loggingmw.RequestLogger(log, "/health"),
		middleware.Secure(),
		middleware.CORS(),
		middleware.BodyLimit("8M"),
	)
	if cfg.CSRFEnabled {
		cc := csrf.DefaultConfig()
		cc.Secure = cfg.CookieSecure
		cc.SkipPrefixes = []string{"/health", "/api/v1/auth/login", "/api/v1/auth/register"}
		cc.SessionCookies = []string{tokens.AccessCookie, tokens.RefreshCookie}
		e.Use(csrf.Middleware(cc))
	}
	return e
}

func migrateUp(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	return migrations.Up(cfg.DatabaseURL, log)
}

func migrateDown(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	return migrations.Down(cfg.DatabaseURL, log)
}

func seed(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	ctx := logging.IntoContext(c.Context, log)
	gdb, err := openDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	a, err := build(ctx, cfg, log, gdb)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.admin.Seed(ctx, cfg.AdminUsername, cfg.AdminPassword)
}

func reindex(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	ctx := logging.IntoContext(c.Context, log)
	gdb, err := openDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	a, err := build(ctx, cfg, log, gdb)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.catalog.Reindex(ctx)
	if err != nil {
		return err
	}
	log.Info("reindex_completed", "products", n)
	return nil
}
