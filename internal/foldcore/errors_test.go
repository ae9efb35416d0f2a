package foldcore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndError(t *testing.T) {
	err := New(NotFound, "memory missing")
	assert.Equal(t, "not_found: memory missing", err.Error())
	assert.Equal(t, NotFound, KindOf(err))
}

func TestNewfFormats(t *testing.T) {
	err := Newf(InvalidInput, "bad path %q", "../etc")
	assert.Contains(t, err.Error(), "bad path")
	assert.Contains(t, err.Error(), "../etc")
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(Storage, nil))
}

func TestWrapPreservesUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := Wrap(Vector, inner)
	require.Error(t, err)
	assert.True(t, errors.Is(err, inner))
	assert.Equal(t, Vector, KindOf(err))
}

func TestIsMatchesKind(t *testing.T) {
	err := New(Conflict, "link exists")
	assert.True(t, Is(err, Conflict))
	assert.False(t, Is(err, NotFound))
}

func TestIsFalseForPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), NotFound))
}

func TestKindOfEmptyForPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestErrorWithNilUnderlying(t *testing.T) {
	err := &Error{Kind: Timeout}
	assert.Equal(t, "timeout", err.Error())
	assert.Nil(t, err.Unwrap())
}
