package agentcoreerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesWrappedKind(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(KindPersistenceFailed, "save failed", base)

	assert.True(t, Is(err, KindPersistenceFailed))
	assert.False(t, Is(err, KindSessionNotFound))
	assert.ErrorIs(t, err, base)
}

func TestNewHasNoCause(t *testing.T) {
	err := New(KindSessionNotFound, "unknown id")
	assert.Nil(t, err.Unwrap())
	assert.Contains(t, err.Error(), "session_not_found")
}
