package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Assistant AssistantConfig
	Mail      MailConfig
}

type AppConfig struct {
	Env               string `envconfig:"APP_ENV" default:"dev"`
	Port              string `envconfig:"PORT" default:"8080"`
	AllowedOrigin     string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:5173"`
	LogLevel          string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat         string `envconfig:"LOG_FORMAT" default:"json"`
	DashboardTimezone string `envconfig:"DASHBOARD_TIMEZONE" default:"Local"`
}

type DBConfig struct {
	URL             string        `envconfig:"DATABASE_URL"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"30"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"8"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
}

type RedisConfig struct {
	Addr       string        `envconfig:"REDIS_ADDR"`
	Password   string        `envconfig:"REDIS_PASSWORD"`
	DB         int           `envconfig:"REDIS_DB" default:"0"`
	SessionTTL time.Duration `envconfig:"ASSISTANT_SESSION_TTL" default:"2h"`
}

type AuthConfig struct {
	Secret   string        `envconfig:"AUTH_SECRET"`
	TokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"8h"`
}

type AssistantConfig struct {
	APIKey  string        `envconfig:"GEMINI_API_KEY"`
	Model   string        `envconfig:"ASSISTANT_MODEL" default:"gemini-2.5-flash"`
	Timeout time.Duration `envconfig:"ASSISTANT_TIMEOUT" default:"45s"`
}

type MailConfig struct {
	SMTPHost      string `envconfig:"SMTP_HOST"`
	SMTPPort      int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername  string `envconfig:"SMTP_USERNAME"`
	SMTPPassword  string `envconfig:"SMTP_PASSWORD"`
	From          string `envconfig:"MAIL_FROM" default:"Stockpilot <no-reply@stockpilot.local>"`
	InviteBaseURL string `envconfig:"INVITE_BASE_URL" default:"http://127.0.0.1:5173"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Auth.Secret = strings.TrimSpace(cfg.Auth.Secret)
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 8 * time.Hour
	}
	return &cfg, nil
}

func (c *Config) Address() string {
	return fmt.Sprintf(":%s", c.App.Port)
}

// Location resolves DASHBOARD_TIMEZONE; "Local" and unknown names fall back to
// the process timezone.
func (a AppConfig) Location() *time.Location {
	name := strings.TrimSpace(a.DashboardTimezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, "prod") || strings.EqualFold(a.Env, "production")
}
