package tools

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaiseExceptionNameMatchesSpec(t *testing.T) {
	assert.Equal(t, RaiseExceptionName, RaiseException.Name)
}

func TestRaiseExceptionCallableAlwaysFails(t *testing.T) {
	_, err := RaiseException.Callable(nil, map[string]any{"msg": "task is impossible"})
	require.Error(t, err)
	assert.Equal(t, "task is impossible", err.Error())
}

func TestRaiseExceptionCallableUnwrapsToSentinel(t *testing.T) {
	_, err := RaiseException.Callable(nil, map[string]any{"msg": "anything"})
	assert.True(t, errors.Is(err, errRaised))
}

func TestRaiseExceptionCallableHandlesEmptyMessage(t *testing.T) {
	_, err := RaiseException.Callable(nil, map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errRaised)
}
