package graphql

import (
	"encoding/json"
	"fmt"
)

type ErrorCode string

const (
	CodeFetchError             ErrorCode = "FETCH_ERROR"
	CodeResponseHTTPStatus     ErrorCode = "RESPONSE_HTTP_STATUS"
	CodeResponseJSONParseError ErrorCode = "RESPONSE_JSON_PARSE_ERROR"
	CodeResponseMalformed      ErrorCode = "RESPONSE_MALFORMED"
)

type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type Error struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Result is a GraphQL response as stored in the cache.
// Client side failures are added to Errors with extensions.client set to true.
type Result struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []Error         `json:"errors,omitempty"`
}

func clientError(message string, code ErrorCode, extensions map[string]any) Error {
	allExtensions := map[string]any{
		"client": true,
		"code":   string(code),
	}
	for key, value := range extensions {
		allExtensions[key] = value
	}
	return Error{
		Message:    message,
		Extensions: allExtensions,
	}
}

// ClientErrorCodes returns the codes of the client side errors in the result
func (r Result) ClientErrorCodes() []ErrorCode {
	codes := []ErrorCode{}
	for _, e := range r.Errors {
		if client, _ := e.Extensions["client"].(bool); !client {
			continue
		}
		if code, ok := e.Extensions["code"].(string); ok {
			codes = append(codes, ErrorCode(code))
		}
	}
	return codes
}

// DecodeResult converts a cached value to a Result.
// Hydrated caches hold json.RawMessage, loads store Result.
func DecodeResult(value any) (Result, error) {
	switch v := value.(type) {
	case Result:
		return v, nil
	case *Result:
		if v == nil {
			return Result{}, fmt.Errorf("cached result is nil")
		}
		return *v, nil
	case json.RawMessage:
		return unmarshalResult(v)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal cached value: %w", err)
	}
	return unmarshalResult(data)
}

func unmarshalResult(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	return result, nil
}
