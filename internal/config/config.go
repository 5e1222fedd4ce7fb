package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

const defaultFetchRateLimit = 10.0

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type Config struct {
	graphQLEndpoint string
	sentryDSN       string
	otlpEndpoint    string
	cacheTTL        time.Duration
	fetchRateLimit  float64
	env             environment
}

func (c *Config) GraphQLEndpoint() string {
	return c.graphQLEndpoint
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

// OTLPEndpoint is the collector host:port, empty when telemetry export is disabled
func (c *Config) OTLPEndpoint() string {
	return c.otlpEndpoint
}

// CacheTTL is zero when entries never expire
func (c *Config) CacheTTL() time.Duration {
	return c.cacheTTL
}

// FetchRateLimit is the maximum number of requests per second
func (c *Config) FetchRateLimit() float64 {
	return c.fetchRateLimit
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, graphQLEndpoint: %s, cacheTTL: %s, fetchRateLimit: %g, telemetry: %t, ...}",
		string(c.env),
		c.graphQLEndpoint,
		c.cacheTTL,
		c.fetchRateLimit,
		c.otlpEndpoint != "",
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}
	invalidValue := func(key, value string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, value)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("GQLCACHE_ENVIRONMENT")
	if !ok {
		return missingKey("GQLCACHE_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return invalidValue("GQLCACHE_ENVIRONMENT", rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	graphQLEndpoint := os.Getenv("GRAPHQL_ENDPOINT")
	if graphQLEndpoint == "" {
		return missingKey("GRAPHQL_ENDPOINT")
	}
	parsedEndpoint, err := url.Parse(graphQLEndpoint)
	if err != nil || parsedEndpoint.Scheme == "" || parsedEndpoint.Host == "" {
		return invalidValue("GRAPHQL_ENDPOINT", graphQLEndpoint)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	var cacheTTL time.Duration
	if rawTTL := os.Getenv("CACHE_TTL"); rawTTL != "" {
		cacheTTL, err = time.ParseDuration(rawTTL)
		if err != nil || cacheTTL <= 0 {
			return invalidValue("CACHE_TTL", rawTTL)
		}
	}

	fetchRateLimit := defaultFetchRateLimit
	if rawLimit := os.Getenv("FETCH_RATE_LIMIT"); rawLimit != "" {
		fetchRateLimit, err = strconv.ParseFloat(rawLimit, 64)
		if err != nil || fetchRateLimit <= 0 {
			return invalidValue("FETCH_RATE_LIMIT", rawLimit)
		}
	}

	if env == production || env == staging {
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	return Config{
		graphQLEndpoint: graphQLEndpoint,
		sentryDSN:       sentryDSN,
		otlpEndpoint:    otlpEndpoint,
		cacheTTL:        cacheTTL,
		fetchRateLimit:  fetchRateLimit,
		env:             env,
	}, nil
}
