package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Amund211/gqlcache/internal/cache"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	t.Run("all flags", func(t *testing.T) {
		t.Parallel()

		opts, err := parseFlags([]string{
			"-query", "query User($id: ID!) { user(id: $id) { name } }",
			"-variables", `{"id":"1"}`,
			"-operation-name", "User",
			"-hydrate", "in.json",
			"-save", "out.json",
			"-timeout", "3s",
		}, io.Discard)
		require.NoError(t, err)
		require.Equal(t, options{
			query:         "query User($id: ID!) { user(id: $id) { name } }",
			variables:     map[string]any{"id": "1"},
			operationName: "User",
			hydratePath:   "in.json",
			savePath:      "out.json",
			timeout:       3 * time.Second,
		}, opts)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		opts, err := parseFlags([]string{"-query", "{ a }"}, io.Discard)
		require.NoError(t, err)
		require.Nil(t, opts.variables)
		require.Equal(t, 10*time.Second, opts.timeout)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		for _, args := range [][]string{
			{},
			{"-query", "{ a }", "-variables", "[1]"},
			{"-query", "{ a }", "-timeout", "0s"},
			{"-unknown"},
		} {
			_, err := parseFlags(args, io.Discard)
			require.Error(t, err, "%v", args)
		}
	})
}

func TestCacheFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	c, err := newCache(path)
	require.NoError(t, err)
	require.Equal(t, 0, c.Len())

	require.NoError(t, cache.SetEntry(c, "b", map[string]any{"data": 1}))
	require.NoError(t, cache.SetEntry(c, "a", map[string]any{"data": 2}))
	require.NoError(t, saveCache(path, c))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `{"b":{"data":1},"a":{"data":2}}`, string(data))

	hydrated, err := newCache(path)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, hydrated.Keys())

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	_, err = newCache(path)
	require.Error(t, err)
}
