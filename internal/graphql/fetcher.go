package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Amund211/gqlcache/internal/domain"
	"github.com/Amund211/gqlcache/internal/loading"
	"github.com/Amund211/gqlcache/internal/logging"
	"github.com/Amund211/gqlcache/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type fetcherMetricsCollection struct {
	requestCount metric.Int64Counter
}

func setupFetcherMetrics(meter metric.Meter) (fetcherMetricsCollection, error) {
	requestCount, err := meter.Int64Counter("graphql/request_count")
	if err != nil {
		return fetcherMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	return fetcherMetricsCollection{
		requestCount: requestCount,
	}, nil
}

type Fetcher struct {
	httpClient HttpClient
	limiter    *rate.Limiter

	metrics fetcherMetricsCollection
	tracer  trace.Tracer
}

// NewFetcher creates a fetcher sending requests through httpClient.
// A nil limiter disables rate limiting.
func NewFetcher(httpClient HttpClient, limiter *rate.Limiter) (*Fetcher, error) {
	const name = "gqlcache/graphql"

	if httpClient == nil {
		return nil, fmt.Errorf("%w: http client must not be nil", domain.ErrInvalidArgument)
	}

	meter := otel.Meter(name)
	tracer := otel.Tracer(name)

	metrics, err := setupFetcherMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &Fetcher{
		httpClient: httpClient,
		limiter:    limiter,

		metrics: metrics,
		tracer:  tracer,
	}, nil
}

// LoadFunc returns a load that fetches opts, for use with loading.Start
func (f *Fetcher) LoadFunc(opts FetchOptions) loading.LoadFunc {
	return func(ctx context.Context) any {
		return f.Fetch(ctx, opts)
	}
}

// Fetch sends the request described by opts.
// Failures never return an error, they are included in the result as client errors.
func (f *Fetcher) Fetch(ctx context.Context, opts FetchOptions) Result {
	ctx, span := f.tracer.Start(ctx, "Fetcher.Fetch")
	defer span.End()

	result, statusCode := f.fetch(ctx, opts)

	codeList := result.ClientErrorCodes()
	code := "OK"
	if len(codeList) > 0 {
		code = string(codeList[0])
		span.SetStatus(codes.Error, code)
	}
	f.metrics.requestCount.Add(
		ctx,
		1,
		metric.WithAttributes(
			attribute.String("status_code", strconv.Itoa(statusCode)),
			attribute.String("code", code),
		),
	)

	return result
}

func (f *Fetcher) fetch(ctx context.Context, opts FetchOptions) (Result, int) {
	logger := logging.FromContext(ctx)

	fetchError := func(err error) Result {
		return Result{
			Errors: []Error{
				clientError("Fetch error.", CodeFetchError, map[string]any{
					"fetchErrorMessage": err.Error(),
				}),
			},
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			logger.WarnContext(ctx, "Did not send GraphQL request due to rate limiting", "error", err.Error())
			return fetchError(fmt.Errorf("rate limit wait: %w", err)), -1
		}
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, bytes.NewReader(opts.Body))
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		logger.ErrorContext(ctx, err.Error())
		reporting.Report(ctx, err)
		return fetchError(err), -1
	}
	for header, values := range opts.Header {
		for _, value := range values {
			req.Header.Add(header, value)
		}
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		// Aborted loads surface here, they are not reported
		if ctx.Err() == nil {
			reporting.Report(ctx, fmt.Errorf("failed to send request: %w", err))
		}
		logger.WarnContext(ctx, "GraphQL request failed", "error", err.Error(), "ctx_error", ctx.Err())
		return fetchError(err), -1
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		logger.WarnContext(ctx, err.Error())
		return fetchError(err), resp.StatusCode
	}

	logger.InfoContext(
		ctx,
		"GraphQL request completed",
		"url", opts.URL,
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
	)

	return resultFromResponse(resp.StatusCode, data), resp.StatusCode
}

func resultFromResponse(statusCode int, data []byte) Result {
	result := Result{}

	if statusCode < 200 || statusCode >= 300 {
		result.Errors = append(result.Errors, clientError(
			"Response HTTP status "+strconv.Itoa(statusCode)+".",
			CodeResponseHTTPStatus,
			map[string]any{
				"statusCode": statusCode,
				"statusText": http.StatusText(statusCode),
			},
		))
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		result.Errors = append(result.Errors, clientError(
			"Response JSON parse error.",
			CodeResponseJSONParseError,
			map[string]any{
				"jsonParseErrorMessage": err.Error(),
			},
		))
		return result
	}

	malformed := func() Result {
		result.Errors = append(result.Errors, clientError("Response JSON malformed.", CodeResponseMalformed, nil))
		return result
	}

	if _, ok := raw.(map[string]any); !ok {
		return malformed()
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return malformed()
	}

	if rawErrors, ok := body["errors"]; ok {
		var serverErrors []Error
		if err := json.Unmarshal(rawErrors, &serverErrors); err != nil || serverErrors == nil {
			return malformed()
		}
		result.Errors = append(result.Errors, serverErrors...)
	}

	if rawData, ok := body["data"]; ok {
		result.Data = rawData
	}

	return result
}
