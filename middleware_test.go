package h3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainRunsInRegistrationOrder(t *testing.T) {
	var order []string
	var c Chain
	c.Use(func(e *Event, next func(*Event) error) error {
		order = append(order, "a-before")
		err := next(e)
		order = append(order, "a-after")
		return err
	})
	c.Use(func(e *Event, next func(*Event) error) error {
		order = append(order, "b-before")
		err := next(e)
		order = append(order, "b-after")
		return err
	})

	terminal := c.Then(func(e *Event) error {
		order = append(order, "handler")
		return nil
	})

	require.NoError(t, terminal(&Event{}))
	assert.Equal(t, []string{"a-before", "b-before", "handler", "b-after", "a-after"}, order)
}

func TestChainShortCircuit(t *testing.T) {
	var calledHandler bool
	var c Chain
	c.Use(func(e *Event, next func(*Event) error) error {
		return nil // does not call next
	})
	terminal := c.Then(func(e *Event) error {
		calledHandler = true
		return nil
	})
	require.NoError(t, terminal(&Event{}))
	assert.False(t, calledHandler, "middleware that doesn't call next must short-circuit the handler")
}
