// Package config reads the book store server settings from the environment and opens the
// resources they name.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/AntonStoeckl/endpoint-contracts-go/contracts"
)

// Environment variables read by Load.
const (
	EnvPort             = "PORT"
	EnvLogLevel         = "LOG_LEVEL"
	EnvContractsMode    = contracts.EnvMode
	EnvStoreDriver      = "STORE_DRIVER"
	EnvDatabaseURL      = "DATABASE_URL"
	EnvRedisAddr        = "REDIS_ADDR"
	EnvOTLPEndpoint     = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvDocsPath         = "DOCS_PATH"
	EnvDocsPluginURL    = "DOCS_CONTRACTS_PLUGIN_URL"
	EnvExposeViolations = "EXPOSE_VIOLATIONS"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverPGX    = "pgx"
	DriverSQLDB  = "sqldb"
	DriverSQLX   = "sqlx"
)

const (
	defaultPort     = 8000
	defaultDocsPath = "/docs"
	defaultSQLiteDB = ":memory:"
)

var (
	// ErrInvalidConfig is wrapped by every error Load returns.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds the server settings.
type Config struct {
	Port             int
	LogLevel         slog.Level
	ContractsMode    contracts.Mode
	StoreDriver      string
	DatabaseURL      string
	RedisAddr        string
	OTLPEndpoint     string
	DocsPath         string
	// DocsPluginURL replaces the contracts plugin script of the docs page, if set.
	DocsPluginURL    string
	ExposeViolations bool
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through getenv.
func LoadFrom(getenv func(string) string) (Config, error) {
	c := Config{
		Port:          defaultPort,
		StoreDriver:   DriverMemory,
		DatabaseURL:   strings.TrimSpace(getenv(EnvDatabaseURL)),
		RedisAddr:     strings.TrimSpace(getenv(EnvRedisAddr)),
		OTLPEndpoint:  strings.TrimSpace(getenv(EnvOTLPEndpoint)),
		DocsPath:      defaultDocsPath,
		DocsPluginURL: strings.TrimSpace(getenv(EnvDocsPluginURL)),
	}

	var errs []error

	if v := getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s: %q is not a port", EnvPort, v))
		}
		c.Port = port
	}

	if v := getenv(EnvLogLevel); v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvLogLevel, err))
		}
	}

	mode, err := contracts.ParseMode(getenv(EnvContractsMode))
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", EnvContractsMode, err))
	}
	c.ContractsMode = mode

	if v := strings.ToLower(strings.TrimSpace(getenv(EnvStoreDriver))); v != "" {
		c.StoreDriver = v
	}

	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.DatabaseURL == "" {
			c.DatabaseURL = defaultSQLiteDB
		}
	case DriverPGX, DriverSQLDB, DriverSQLX:
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("%s is required for store driver %q", EnvDatabaseURL, c.StoreDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("%s: unknown store driver %q", EnvStoreDriver, c.StoreDriver))
	}

	if v := getenv(EnvDocsPath); v != "" {
		if !strings.HasPrefix(v, "/") {
			errs = append(errs, fmt.Errorf("%s: %q must start with /", EnvDocsPath, v))
		}
		c.DocsPath = v
	}

	if v := getenv(EnvExposeViolations); v != "" {
		expose, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvExposeViolations, err))
		}
		c.ExposeViolations = expose
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return c, nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
