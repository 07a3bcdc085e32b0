// Package config loads process-wide settings once at startup. The resulting
// Config is treated as immutable and handed to constructors explicitly.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env       string `env:"APP_ENV" env-default:"development"`
	Port      string `env:"PORT" env-default:"8002"`
	SentryDSN string `env:"SENTRY_DSN"`

	DB     DBConfig
	Auth   AuthConfig
	Argon  ArgonConfig
	Cookie CookieConfig
	HTTP   HTTPConfig
}

type DBConfig struct {
	URL                    string `env:"DATABASE_URL" env-required:"true"`
	MaxOpenConns           int    `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns           int    `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetimeMinutes int    `env:"DB_CONN_MAX_LIFETIME_MINUTES" env-default:"30"`
	ConnMaxIdleTimeMinutes int    `env:"DB_CONN_MAX_IDLE_TIME_MINUTES" env-default:"10"`
	RunMigrations          bool   `env:"RUN_MIGRATIONS_ON_STARTUP" env-default:"false"`
}

// AuthConfig carries the signing secret and token lifetimes.
type AuthConfig struct {
	SecretKey                string `env:"SECRET_KEY" env-required:"true"`
	Algorithm                string `env:"ALGORITHM" env-default:"HS256"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" env-default:"10"`
	RefreshTokenExpireDays   int    `env:"REFRESH_TOKEN_EXPIRE_DAYS" env-default:"7"`
	LoginRateLimitMax        int    `env:"LOGIN_RATE_LIMIT_MAX" env-default:"10"`
	LoginRateLimitWindowSecs int    `env:"LOGIN_RATE_LIMIT_WINDOW_SECONDS" env-default:"60"`
}

// ArgonConfig is the password hashing work factor.
type ArgonConfig struct {
	Time      uint32 `env:"ARGON2_TIME" env-default:"3"`
	MemoryKiB uint32 `env:"ARGON2_MEMORY_KIB" env-default:"65536"`
	Threads   uint8  `env:"ARGON2_THREADS" env-default:"4"`
}

type CookieConfig struct {
	Secure   bool   `env:"COOKIE_SECURE" env-default:"true"`
	SameSite string `env:"COOKIE_SAMESITE" env-default:"lax"`
	Domain   string `env:"COOKIE_DOMAIN"`
}

type HTTPConfig struct {
	CORSOrigins []string `env:"CORS_ORIGINS" env-default:"http://localhost:5173" env-separator:","`
	// TrustProxyHeaders keys clients by the proxy-appended X-Forwarded-For
	// entry instead of the peer address.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" env-default:"false"`
}

var supportedAlgorithms = map[string]struct{}{
	"HS256": {},
	"HS384": {},
	"HS512": {},
}

// Load reads an optional .env file, then the process environment.
func Load(loadDotEnv bool) (*Config, error) {
	if loadDotEnv {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) normalize() {
	c.Auth.SecretKey = strings.TrimSpace(c.Auth.SecretKey)
	c.Auth.Algorithm = strings.ToUpper(strings.TrimSpace(c.Auth.Algorithm))
	c.Cookie.SameSite = strings.ToLower(strings.TrimSpace(c.Cookie.SameSite))

	origins := make([]string, 0, len(c.HTTP.CORSOrigins))
	for _, origin := range c.HTTP.CORSOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.HTTP.CORSOrigins = origins
}

func (c *Config) Validate() error {
	var errs []error

	if c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY must not be empty"))
	}
	if _, ok := supportedAlgorithms[c.Auth.Algorithm]; !ok {
		errs = append(errs, fmt.Errorf("unsupported ALGORITHM %q", c.Auth.Algorithm))
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	if c.Auth.RefreshTokenExpireDays <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_EXPIRE_DAYS must be positive"))
	}
	if c.Argon.Time == 0 || c.Argon.MemoryKiB == 0 || c.Argon.Threads == 0 {
		errs = append(errs, errors.New("argon2 parameters must be positive"))
	}
	if _, err := ParseSameSite(c.Cookie.SameSite); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.Auth.AccessTokenExpireMinutes) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.Auth.RefreshTokenExpireDays) * 24 * time.Hour
}

func (c *Config) LoginRateWindow() time.Duration {
	return time.Duration(c.Auth.LoginRateLimitWindowSecs) * time.Second
}

func (c *Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.DB.ConnMaxLifetimeMinutes) * time.Minute
}

func (c *Config) ConnMaxIdleTime() time.Duration {
	return time.Duration(c.DB.ConnMaxIdleTimeMinutes) * time.Minute
}

// ParseSameSite maps the COOKIE_SAMESITE value onto net/http's enum.
func ParseSameSite(value string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("unsupported COOKIE_SAMESITE %q", value)
	}
}
