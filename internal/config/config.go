// Package config defines the runtime configuration of the warden server.
// Every option can be given as a command line flag or an environment variable.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

const (
	flagAddr              = "addr"
	flagEnv               = "env"
	flagIssuer            = "issuer"
	flagAccessTTL         = "access-ttl"
	flagRefreshTTL        = "refresh-ttl"
	flagCookieSecure      = "cookie-secure"
	flagCookieDomain      = "cookie-domain"
	flagRefreshChecksUser = "refresh-checks-user"
	flagRedisURL          = "redis-url"
	flagEventsTopic       = "events-topic"
	flagShutdownTimeout   = "shutdown-timeout"
)

// Config contains runtime configuration values
type Config struct {
	Addr              string
	Environment       string
	Issuer            string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	CookieSecure      bool
	CookieDomain      string
	RefreshChecksUser bool
	RedisURL          string // empty keeps users and events in memory
	EventsTopic       string
	ShutdownTimeout   time.Duration
}

// Flags returns the cli flags backing Config
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagAddr, Value: ":8000", Usage: "HTTP listen address", EnvVars: []string{"HTTP_ADDR"}},
		&cli.StringFlag{Name: flagEnv, Value: "development", Usage: "deployment environment", EnvVars: []string{"APP_ENV"}},
		&cli.StringFlag{Name: flagIssuer, Value: "website.com", Usage: "token issuer (iss claim)", EnvVars: []string{"TOKEN_ISSUER"}},
		&cli.DurationFlag{Name: flagAccessTTL, Value: 15 * time.Minute, Usage: "access token lifetime", EnvVars: []string{"ACCESS_TOKEN_TTL"}},
		&cli.DurationFlag{Name: flagRefreshTTL, Value: 60 * time.Minute, Usage: "refresh token lifetime", EnvVars: []string{"REFRESH_TOKEN_TTL"}},
		&cli.BoolFlag{Name: flagCookieSecure, Usage: "mark token cookies Secure", EnvVars: []string{"COOKIE_SECURE"}},
		&cli.StringFlag{Name: flagCookieDomain, Usage: "domain attribute of token cookies", EnvVars: []string{"COOKIE_DOMAIN"}},
		&cli.BoolFlag{Name: flagRefreshChecksUser, Usage: "reject refresh tokens of deleted users", EnvVars: []string{"REFRESH_CHECKS_USER"}},
		&cli.StringFlag{Name: flagRedisURL, Usage: "redis URL for users and session events", EnvVars: []string{"REDIS_URL"}},
		&cli.StringFlag{Name: flagEventsTopic, Value: "warden.sessions", Usage: "topic for session events", EnvVars: []string{"EVENTS_TOPIC"}},
		&cli.DurationFlag{Name: flagShutdownTimeout, Value: 10 * time.Second, Usage: "graceful shutdown timeout", EnvVars: []string{"SHUTDOWN_TIMEOUT"}},
	}
}

// FromContext reads and validates Config from parsed cli flags
func FromContext(c *cli.Context) (Config, error) {
	cfg := Config{
		Addr:              c.String(flagAddr),
		Environment:       c.String(flagEnv),
		Issuer:            strings.TrimSpace(c.String(flagIssuer)),
		AccessTTL:         c.Duration(flagAccessTTL),
		RefreshTTL:        c.Duration(flagRefreshTTL),
		CookieSecure:      c.Bool(flagCookieSecure),
		CookieDomain:      c.String(flagCookieDomain),
		RefreshChecksUser: c.Bool(flagRefreshChecksUser),
		RedisURL:          c.String(flagRedisURL),
		EventsTopic:       c.String(flagEventsTopic),
		ShutdownTimeout:   c.Duration(flagShutdownTimeout),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable
func (c Config) Validate() error {
	var errs []error
	if c.Issuer == "" {
		errs = append(errs, errors.New("issuer is required"))
	}
	if c.AccessTTL <= 0 {
		errs = append(errs, fmt.Errorf("access token ttl must be positive, got %s", c.AccessTTL))
	}
	if c.RefreshTTL <= 0 {
		errs = append(errs, fmt.Errorf("refresh token ttl must be positive, got %s", c.RefreshTTL))
	}
	if c.AccessTTL > 0 && c.RefreshTTL > 0 && c.AccessTTL >= c.RefreshTTL {
		errs = append(errs, fmt.Errorf("access token ttl %s must be shorter than refresh token ttl %s", c.AccessTTL, c.RefreshTTL))
	}
	return errors.Join(errs...)
}

// Development reports whether the server runs in development mode
func (c Config) Development() bool {
	return c.Environment == "development"
}
