package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	pkgerrors "github.com/pkg/errors"

	"github.com/Skotchmaster/storefront/pkg/db"
)

type Config struct {
	ServiceName   string `envconfig:"SERVICE_NAME" default:"storefront"`
	ServerPort    string `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL   string `envconfig:"DATABASE_URL" required:"true"`
	DBAutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`

	DBMaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	DBMaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	DBConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`

	JWTSecret        string        `envconfig:"JWT_SECRET" required:"true"`
	JWTRefreshSecret string        `envconfig:"JWT_REFRESH_SECRET" required:"true"`
	AccessTTL        time.Duration `envconfig:"ACCESS_TTL" default:"15m"`
	RefreshTTL       time.Duration `envconfig:"REFRESH_TTL" default:"168h"`
	CookieSecure     bool          `envconfig:"COOKIE_SECURE" default:"true"`
	CSRFEnabled      bool          `envconfig:"CSRF_ENABLED" default:"false"`
	AuthRateLimit    float64       `envconfig:"AUTH_RATE_LIMIT" default:"5"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`

	ESURL      string `envconfig:"ES_URL"`
	ESUser     string `envconfig:"ES_USER"`
	ESPassword string `envconfig:"ES_PASSWORD"`
	ESIndex    string `envconfig:"ES_INDEX" default:"products"`

	PayPalBaseURL      string `envconfig:"PAYPAL_BASE_URL"`
	PayPalClientID     string `envconfig:"PAYPAL_CLIENT_ID"`
	PayPalClientSecret string `envconfig:"PAYPAL_CLIENT_SECRET"`

	StorageEndpoint  string `envconfig:"STORAGE_ENDPOINT"`
	StorageAccessKey string `envconfig:"STORAGE_ACCESS_KEY"`
	StorageSecretKey string `envconfig:"STORAGE_SECRET_KEY"`
	StorageBucket    string `envconfig:"STORAGE_BUCKET" default:"images"`
	StorageUseSSL    bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
	StoragePublicURL string `envconfig:"STORAGE_PUBLIC_URL"`

	AdminUsername string `envconfig:"ADMIN_USERNAME"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
}

// Load reads .env (when present) and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := godotenv.Load(envFiles...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, pkgerrors.Wrap(err, "load env file")
		}
		slog.Info("env file not found, using process environment", "files", envFiles)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, pkgerrors.Wrap(err, "process env")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == strings.TrimSpace(c.JWTRefreshSecret) {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.RefreshTTL <= c.AccessTTL {
		return errors.New("REFRESH_TTL must be longer than ACCESS_TTL")
	}
	return nil
}

func (c *Config) Addr() string { return ":" + c.ServerPort }

func (c *Config) DBOptions() db.Options {
	return db.Options{
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
		LogLevel:        c.LogLevel,
	}
}

func (c *Config) KafkaEnabled() bool   { return len(c.KafkaBrokers) > 0 }
func (c *Config) SearchEnabled() bool  { return c.ESURL != "" }
func (c *Config) PayPalEnabled() bool  { return c.PayPalBaseURL != "" && c.PayPalClientID != "" }
func (c *Config) StorageEnabled() bool { return c.StorageEndpoint != "" }
