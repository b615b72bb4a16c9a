package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("dummy").Wrap(e2)
	e3 := e.Unwrap()
	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e3 == e2)
}

func TestWrapKeepsSentinel(t *testing.T) {
	sentinel := New("not found")
	cause := fmt.Errorf("file %q", "a.txt")

	wrapped := sentinel.Wrap(cause)
	require.Error(t, wrapped)

	assert.Nil(t, sentinel.Unwrap(), "the sentinel must not be mutated")
	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, Is(wrapped, cause))
	assert.Equal(t, `not found: file "a.txt"`, wrapped.Error())
	assert.Equal(t, "not found", sentinel.Error())

	other := New("not found")
	assert.False(t, Is(wrapped, other), "sentinels with the same message are distinct")

	twice := sentinel.Wrapf("at %s", "HEAD").Wrap(cause)
	assert.True(t, Is(twice, sentinel))
}

func TestAs(t *testing.T) {
	sentinel := New("conflict")
	err := fmt.Errorf("update branch: %w", sentinel.Wrapf("release/1.0.0"))

	var target *Error
	require.True(t, As(err, &target))
	assert.True(t, Is(target, sentinel))
	assert.Contains(t, err.Error(), "conflict: release/1.0.0")
}
