// Package config loads the server configuration from an optional YAML file
// and TRANSIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iudanet/transitauth/internal/server/jwt"
	"github.com/iudanet/transitauth/internal/server/middleware"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "TRANSIT"

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Cookie    CookieConfig    `mapstructure:"cookie"`
	Mail      MailConfig      `mapstructure:"mail"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Environment     string        `mapstructure:"environment"` // development, production
	// TrustedProxies адреса или CIDR, чьим X-Forwarded-For верим
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction сообщает, запущен ли сервер в production окружении
func (c ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// DatabaseConfig хранилище учетных записей
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	DSN             string        `mapstructure:"dsn"`    // путь к файлу для sqlite
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig holds Redis configuration for the redis session store.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	KeyPrefix string `mapstructure:"key_prefix"`
	DB        int    `mapstructure:"db"`
}

// AuthConfig holds token, session and password settings.
type AuthConfig struct {
	JWTSecret            string        `mapstructure:"jwt_secret"`
	AccessTokenTTL       string        `mapstructure:"access_token_ttl"`
	RememberTokenTTL     string        `mapstructure:"remember_token_ttl"`
	SessionStore         string        `mapstructure:"session_store"` // memory, redis, bolt
	BoltPath             string        `mapstructure:"bolt_path"`
	LoginSessionTTL      time.Duration `mapstructure:"login_session_ttl"`
	JanitorInterval      time.Duration `mapstructure:"janitor_interval"`
	BcryptCost           int           `mapstructure:"bcrypt_cost"`
	DirectLoginEnabled   bool          `mapstructure:"direct_login_enabled"`
	RequireVerifiedEmail bool          `mapstructure:"require_verified_email"`
}

// CookieConfig настройки cookies сессии
type CookieConfig struct {
	Domain         string        `mapstructure:"domain"`
	MaxAge         time.Duration `mapstructure:"max_age"`
	RememberMaxAge time.Duration `mapstructure:"remember_max_age"`
	Secure         bool          `mapstructure:"secure"`
}

// MailConfig настройки отправки писем
type MailConfig struct {
	Driver      string        `mapstructure:"driver"` // smtp, log
	Host        string        `mapstructure:"host"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	From        string        `mapstructure:"from"`
	FrontendURL string        `mapstructure:"frontend_url"`
	Port        int           `mapstructure:"port"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig лимиты запросов по IP
type RateLimitConfig struct {
	Requests     int           `mapstructure:"requests"`
	Window       time.Duration `mapstructure:"window"`
	AuthRequests int           `mapstructure:"auth_requests"`
	AuthWindow   time.Duration `mapstructure:"auth_window"`
	Enabled      bool          `mapstructure:"enabled"`
}

// CORSConfig holds allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig формат и уровень логов
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Load reads configuration from path (optional) and environment variables.
// An empty path searches config.yaml in the working directory and ./config.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Секреты без значений по умолчанию привязываем явно
	for _, key := range []string{"auth.jwt_secret", "mail.password", "redis.password", "database.dsn"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Server.IsProduction() {
		cfg.Cookie.Secure = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if _, err := jwt.ParseTTL(c.Auth.AccessTokenTTL); err != nil {
		errs = append(errs, fmt.Errorf("auth.access_token_ttl: %w", err))
	}
	if _, err := jwt.ParseTTL(c.Auth.RememberTokenTTL); err != nil {
		errs = append(errs, fmt.Errorf("auth.remember_token_ttl: %w", err))
	}
	if c.Auth.BcryptCost < 10 || c.Auth.BcryptCost > 14 {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost must be between 10 and 14, got %d", c.Auth.BcryptCost))
	}
	if c.Auth.LoginSessionTTL <= 0 {
		errs = append(errs, errors.New("auth.login_session_ttl must be positive"))
	}

	switch c.Auth.SessionStore {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis session store"))
		}
	case "bolt":
		if c.Auth.BoltPath == "" {
			errs = append(errs, errors.New("auth.bolt_path is required for the bolt session store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth.session_store %q", c.Auth.SessionStore))
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.Host == "" || c.Mail.From == "" {
			errs = append(errs, errors.New("mail.host and mail.from are required for the smtp driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mail.driver %q", c.Mail.Driver))
	}

	if _, err := middleware.ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("server.trusted_proxies: %w", err))
	}

	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.AuthRequests <= 0) {
		errs = append(errs, errors.New("ratelimit requests must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "transitauth.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "transitauth:login")

	v.SetDefault("auth.access_token_ttl", "24h")
	v.SetDefault("auth.remember_token_ttl", "30d")
	v.SetDefault("auth.session_store", "memory")
	v.SetDefault("auth.bolt_path", "sessions.db")
	v.SetDefault("auth.login_session_ttl", "5m")
	v.SetDefault("auth.janitor_interval", "1m")
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.direct_login_enabled", true)
	v.SetDefault("auth.require_verified_email", false)

	v.SetDefault("cookie.domain", "")
	v.SetDefault("cookie.max_age", "24h")
	v.SetDefault("cookie.remember_max_age", "720h")
	v.SetDefault("cookie.secure", false)

	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.from", "no-reply@transitauth.local")
	v.SetDefault("mail.frontend_url", "http://localhost:3000")
	v.SetDefault("mail.timeout", "10s")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests", 100)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("ratelimit.auth_requests", 10)
	v.SetDefault("ratelimit.auth_window", "5m")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
