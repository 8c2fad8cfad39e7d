package router

import (
	"testing"

	"github.com/badu/h3/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterLiteralAndParam(t *testing.T) {
	r := New(16)
	require.NoError(t, r.Insert("GET", "/users/:id", "handler-users-id", nil))
	require.NoError(t, r.Insert("GET", "/users/me", "handler-users-me", nil))

	m, err := r.Match("GET", "/users/me")
	require.NoError(t, err)
	assert.Equal(t, "handler-users-me", m.Handler)
	assert.Empty(t, m.Params)

	m, err = r.Match("GET", "/users/42")
	require.NoError(t, err)
	assert.Equal(t, "handler-users-id", m.Handler)
	require.Len(t, m.Params, 1)
	assert.Equal(t, Param{Name: "id", Value: "42"}, m.Params[0])
}

func TestRouterWildcard(t *testing.T) {
	r := New(16)
	require.NoError(t, r.Insert("GET", "/files/*path", "handler-files", nil))

	m, err := r.Match("GET", "/files/a/b/c.txt")
	require.NoError(t, err)
	require.Len(t, m.Params, 1)
	assert.Equal(t, "a/b/c.txt", m.Params[0].Value)

	m, err = r.Match("GET", "/files")
	require.NoError(t, err)
	assert.Equal(t, "", m.Params[0].Value)
}

func TestRouterWildcardMustBeFinal(t *testing.T) {
	r := New(16)
	err := r.Insert("GET", "/files/*path/extra", "h", nil)
	assert.ErrorIs(t, err, errs.ErrInvalidPattern)
}

func TestRouterNotFoundVsMethodNotAllowed(t *testing.T) {
	r := New(16)
	require.NoError(t, r.Insert("GET", "/a", "handler-a", nil))

	_, err := r.Match("POST", "/a")
	assert.ErrorIs(t, err, errs.ErrMethodNotAllowed)
	assert.Equal(t, []string{"GET"}, r.AllowedMethods("/a"))

	_, err = r.Match("GET", "/b")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRouterDuplicateRoute(t *testing.T) {
	r := New(16)
	require.NoError(t, r.Insert("GET", "/a", "first", nil))
	err := r.Insert("GET", "/a", "second", nil)
	assert.ErrorIs(t, err, errs.ErrDuplicateRoute)
}

func TestRouterTieBreakLiteralBeatsParam(t *testing.T) {
	r := New(16)
	require.NoError(t, r.Insert("GET", "/users/:id", "param-handler", nil))
	require.NoError(t, r.Insert("GET", "/users/all", "literal-handler", nil))

	m, err := r.Match("GET", "/users/all")
	require.NoError(t, err)
	assert.Equal(t, "literal-handler", m.Handler)
}

func TestRouterCacheInvalidatedOnMutation(t *testing.T) {
	r := New(16)
	require.NoError(t, r.Insert("GET", "/a", "v1", nil))

	_, err := r.Match("GET", "/a")
	require.NoError(t, err)
	stats := r.CacheStats()
	assert.Equal(t, uint64(1), stats.Misses)

	require.NoError(t, r.Insert("POST", "/a", "v1-post", nil))

	m, err := r.Match("GET", "/a")
	require.NoError(t, err)
	assert.Equal(t, "v1", m.Handler)
	stats = r.CacheStats()
	assert.Equal(t, uint64(2), stats.Misses, "cache must be invalidated by the POST insert, not return a stale hit")
}

func TestRouterAny(t *testing.T) {
	r := New(0)
	require.NoError(t, r.Any("/ping", "pong", nil))
	for _, method := range AllMethods {
		m, err := r.Match(method, "/ping")
		require.NoError(t, err)
		assert.Equal(t, "pong", m.Handler)
	}
}

func TestRouterCacheDisabled(t *testing.T) {
	r := New(0)
	require.NoError(t, r.Insert("GET", "/x", "v", nil))
	m, err := r.Match("GET", "/x")
	require.NoError(t, err)
	assert.Equal(t, "v", m.Handler)
	assert.Equal(t, Stats{}, r.CacheStats())
}
