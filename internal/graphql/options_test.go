package graphql_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Amund211/gqlcache/internal/domain"
	"github.com/Amund211/gqlcache/internal/graphql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewFetchOptions(t *testing.T) {
	t.Parallel()

	t.Run("builds a json post", func(t *testing.T) {
		t.Parallel()

		opts, err := graphql.NewFetchOptions(endpoint, graphql.Operation{
			Query:         "query Viewer($id: ID!) { user(id: $id) { name } }",
			Variables:     map[string]any{"id": "1"},
			OperationName: "Viewer",
		})
		require.NoError(t, err)

		require.Equal(t, endpoint, opts.URL)
		require.Equal(t, http.MethodPost, opts.Method)
		require.Equal(t, "application/json", opts.Header.Get("Content-Type"))
		require.Equal(t, "application/json", opts.Header.Get("Accept"))
		require.JSONEq(
			t,
			`{"query":"query Viewer($id: ID!) { user(id: $id) { name } }","variables":{"id":"1"},"operationName":"Viewer"}`,
			string(opts.Body),
		)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		t.Parallel()

		_, err := graphql.NewFetchOptions("/graphql", graphql.Operation{Query: "{ a }"})
		require.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = graphql.NewFetchOptions(endpoint, graphql.Operation{})
		require.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = graphql.NewFetchOptions(endpoint, graphql.Operation{
			Query:     "{ a }",
			Variables: map[string]any{"f": func() {}},
		})
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	newKey := func(t *testing.T, url string, operation graphql.Operation) string {
		t.Helper()
		opts, err := graphql.NewFetchOptions(url, operation)
		require.NoError(t, err)
		return opts.CacheKey()
	}

	a := newKey(t, endpoint, graphql.Operation{Query: "{ a }"})

	_, err := uuid.Parse(a)
	require.NoError(t, err)

	require.Equal(t, a, newKey(t, endpoint, graphql.Operation{Query: "{ a }"}))
	require.NotEqual(t, a, newKey(t, endpoint, graphql.Operation{Query: "{ b }"}))
	require.NotEqual(t, a, newKey(t, "https://other.example.com/graphql", graphql.Operation{Query: "{ a }"}))
	require.NotEqual(t, a, newKey(t, endpoint, graphql.Operation{Query: "{ a }", Variables: map[string]any{"x": 1}}))
}

func TestDecodeResult(t *testing.T) {
	t.Parallel()

	want := graphql.Result{
		Data:   json.RawMessage(`{"a":1}`),
		Errors: []graphql.Error{{Message: "oops"}},
	}

	cases := []struct {
		name  string
		value any
	}{
		{name: "result", value: want},
		{name: "pointer", value: &want},
		{name: "raw message", value: json.RawMessage(`{"data":{"a":1},"errors":[{"message":"oops"}]}`)},
		{name: "decoded json", value: map[string]any{
			"data":   map[string]any{"a": 1},
			"errors": []any{map[string]any{"message": "oops"}},
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			got, err := graphql.DecodeResult(c.value)
			require.NoError(t, err)
			require.JSONEq(t, string(want.Data), string(got.Data))
			require.Equal(t, want.Errors, got.Errors)
		})
	}

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		_, err := graphql.DecodeResult(json.RawMessage(`[1, 2]`))
		require.Error(t, err)

		_, err = graphql.DecodeResult((*graphql.Result)(nil))
		require.Error(t, err)

		_, err = graphql.DecodeResult(func() {})
		require.Error(t, err)
	})
}
