package graphql

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Amund211/gqlcache/internal/domain"
	"github.com/google/uuid"
)

const userAgent = "gqlcache/0.1.0 (+https://github.com/Amund211/gqlcache)"

// Namespace for name based cache keys
var cacheKeyNamespace = uuid.MustParse("6f2f8a0e-4d0c-5b7e-9a3f-1c2d3e4f5a6b")

type Operation struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// FetchOptions describes the HTTP request for a GraphQL operation
type FetchOptions struct {
	URL    string
	Method string
	Header http.Header
	Body   []byte
}

func NewFetchOptions(endpoint string, operation Operation) (FetchOptions, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return FetchOptions{}, fmt.Errorf("%w: invalid GraphQL endpoint %q", domain.ErrInvalidArgument, endpoint)
	}
	if operation.Query == "" {
		return FetchOptions{}, fmt.Errorf("%w: query must not be empty", domain.ErrInvalidArgument)
	}

	body, err := json.Marshal(operation)
	if err != nil {
		return FetchOptions{}, fmt.Errorf("%w: failed to marshal operation: %w", domain.ErrInvalidArgument, err)
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")

	return FetchOptions{
		URL:    endpoint,
		Method: http.MethodPost,
		Header: header,
		Body:   body,
	}, nil
}

// CacheKey returns a key that is identical for identical requests
func (o FetchOptions) CacheKey() string {
	data := make([]byte, 0, len(o.Method)+len(o.URL)+len(o.Body)+2)
	data = append(data, o.Method...)
	data = append(data, '\n')
	data = append(data, o.URL...)
	data = append(data, '\n')
	data = append(data, o.Body...)
	return uuid.NewSHA1(cacheKeyNamespace, data).String()
}
