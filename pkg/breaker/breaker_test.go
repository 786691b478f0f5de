package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errBoom     = errors.New("boom")
	errNotFound = errors.New("not found")
)

func TestBreakerTripsOnConsecutiveFailures(t *testing.T) {
	b := New(Settings{
		Name:                "test",
		Timeout:             time.Minute,
		ConsecutiveFailures: 3,
	})

	for i := 0; i < 3; i++ {
		_, err := b.Execute(func() (interface{}, error) { return nil, errBoom })
		require.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, "open", b.State())

	called := false
	_, err := b.Execute(func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreakerIgnoredErrors(t *testing.T) {
	b := New(Settings{
		Name:                "test",
		Timeout:             time.Minute,
		ConsecutiveFailures: 2,
		Ignore:              []error{errNotFound},
	})

	for i := 0; i < 5; i++ {
		_, err := b.Execute(func() (interface{}, error) { return nil, errNotFound })
		assert.ErrorIs(t, err, errNotFound)
	}
	assert.Equal(t, "closed", b.State())
	assert.Equal(t, "test", b.Name())
}

func TestBreakerPassesValues(t *testing.T) {
	b := New(DefaultSettings("bars"))

	v, err := b.Execute(func() (interface{}, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
