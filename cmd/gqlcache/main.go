package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/Amund211/gqlcache/internal/cache"
	"github.com/Amund211/gqlcache/internal/client"
	"github.com/Amund211/gqlcache/internal/config"
	"github.com/Amund211/gqlcache/internal/expiry"
	"github.com/Amund211/gqlcache/internal/graphql"
	"github.com/Amund211/gqlcache/internal/loading"
	"github.com/Amund211/gqlcache/internal/logging"
	"github.com/Amund211/gqlcache/internal/reporting"
	"github.com/Amund211/gqlcache/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"
	"golang.org/x/time/rate"
)

const serviceName = "gqlcache"

type options struct {
	query         string
	variables     map[string]any
	operationName string
	hydratePath   string
	savePath      string
	timeout       time.Duration
}

func parseFlags(args []string, output io.Writer) (options, error) {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.SetOutput(output)

	query := fs.String("query", "", "GraphQL query to load (required)")
	variables := fs.String("variables", "", "JSON object with the operation variables")
	operationName := fs.String("operation-name", "", "Name of the operation to run")
	hydratePath := fs.String("hydrate", "", "Hydrate the cache from this JSON file")
	savePath := fs.String("save", "", "Write the cache to this JSON file when done")
	timeout := fs.Duration("timeout", 10*time.Second, "Timeout for the load")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if *query == "" {
		return options{}, fmt.Errorf("-query is required")
	}
	if *timeout <= 0 {
		return options{}, fmt.Errorf("-timeout must be positive")
	}

	var parsedVariables map[string]any
	if *variables != "" {
		if err := json.Unmarshal([]byte(*variables), &parsedVariables); err != nil {
			return options{}, fmt.Errorf("-variables must be a JSON object: %w", err)
		}
	}

	return options{
		query:         *query,
		variables:     parsedVariables,
		operationName: *operationName,
		hydratePath:   *hydratePath,
		savePath:      *savePath,
		timeout:       *timeout,
	}, nil
}

func newCache(path string) (*cache.Cache, error) {
	if path == "" {
		return cache.NewCache(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cache.NewCache(), nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	c, err := cache.NewCacheFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate cache: %w", err)
	}
	return c, nil
}

func saveCache(path string, c *cache.Cache) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

func main() {
	instanceID := uuid.New().String()
	logger := logging.New(os.Stderr, slog.LevelInfo).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	} else if err != nil {
		fail("Invalid arguments", "error", err.Error())
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	flush, err := reporting.NewSentryOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if config.OTLPEndpoint() != "" {
		shutdown, err := telemetry.SetupOTelSDK(ctx, serviceName, config.OTLPEndpoint())
		if err != nil {
			fail("Failed to set up telemetry", "error", err.Error())
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Error("Failed to shut down telemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized telemetry")
	}

	ctx = logging.AddToContext(ctx, logger)
	ctx = reporting.WithHub(ctx, "load")

	c, err := newCache(opts.hydratePath)
	if err != nil {
		fail("Failed to create cache", "error", err.Error())
	}
	logger.Info("Initialized cache", "entries", c.Len())

	if config.CacheTTL() > 0 {
		expirer, err := expiry.NewExpirer(c, config.CacheTTL(), expiry.ActionPrune)
		if err != nil {
			fail("Failed to create expirer", "error", err.Error())
		}
		if err := expirer.Start(ctx); err != nil {
			fail("Failed to start expirer", "error", err.Error())
		}
		defer expirer.Stop()
	}

	httpClient := &http.Client{
		Timeout:   opts.timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	limiter := rate.NewLimiter(rate.Limit(config.FetchRateLimit()), 1)

	fetcher, err := graphql.NewFetcher(httpClient, limiter)
	if err != nil {
		fail("Failed to create fetcher", "error", err.Error())
	}

	gqlClient, err := client.New(c, loading.NewLoading(), fetcher)
	if err != nil {
		fail("Failed to create client", "error", err.Error())
	}

	fetchOptions, err := graphql.NewFetchOptions(config.GraphQLEndpoint(), graphql.Operation{
		Query:         opts.query,
		Variables:     opts.variables,
		OperationName: opts.operationName,
	})
	if err != nil {
		fail("Invalid operation", "error", err.Error())
	}

	loadCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	value, err := gqlClient.LoadOnce(loadCtx, fetchOptions)
	if err != nil {
		fail("Failed to start load", "error", err.Error())
	}
	if _, err := value.Wait(context.WithoutCancel(ctx)); err != nil {
		fail("Failed to wait for load", "error", err.Error())
	}
	if value.Aborted() {
		fail("Load was aborted", "ctx_error", loadCtx.Err())
	}

	result, ok, err := gqlClient.Result(fetchOptions.CacheKey())
	if err != nil {
		fail("Failed to read result", "error", err.Error())
	}
	if !ok {
		fail("Result missing from cache", "cacheKey", fetchOptions.CacheKey())
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		fail("Failed to write result", "error", err.Error())
	}

	if opts.savePath != "" {
		if err := saveCache(opts.savePath, c); err != nil {
			fail("Failed to save cache", "error", err.Error())
		}
		logger.Info("Saved cache", "path", opts.savePath, "entries", c.Len())
	}
}
