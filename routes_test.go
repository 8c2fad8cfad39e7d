package h3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterGetAndMatch(t *testing.T) {
	r := NewRouter(16)
	called := false
	require.NoError(t, r.Get("/users/:id", func(e *Event) error {
		called = true
		return e.SendText("id=" + e.Param("id"))
	}))

	entry, params, err := r.match("GET", "/users/42")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Len(t, params, 1)
	assert.Equal(t, "42", params[0].Value)

	ev := &Event{}
	resetEvent(ev)
	ev.Params = params
	require.NoError(t, entry.handler(ev))
	assert.True(t, called)
	assert.Equal(t, "id=42", string(ev.Response.Body))
}

func TestRouterAnyRegistersAllMethods(t *testing.T) {
	r := NewRouter(0)
	require.NoError(t, r.Any("/ping", func(e *Event) error { return e.SendText("pong") }))

	for _, m := range []string{"GET", "POST", "DELETE"} {
		entry, _, err := r.match(m, "/ping")
		require.NoError(t, err)
		require.NotNil(t, entry)
	}
}

func TestRouterMethodNotAllowedListsAllowedMethods(t *testing.T) {
	r := NewRouter(0)
	require.NoError(t, r.Get("/a", func(e *Event) error { return nil }))

	_, _, err := r.match("POST", "/a")
	assert.Error(t, err)
	assert.Equal(t, []string{"GET"}, r.allowedMethods("/a"))
}
