package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeStoreFailure, "failed to create user")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeStoreFailure, CodeOf(err))
	assert.Equal(t, "failed to create user: connection reset", err.Error())
}

func TestHasCode(t *testing.T) {
	t.Run("finds code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeNotFound, "user not found"))
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("finds inner code under outer code", func(t *testing.T) {
		inner := New(CodePermissionDenied, "denied")
		outer := Wrap(inner, CodeForbidden, "forbidden")
		assert.True(t, HasCode(outer, CodePermissionDenied))
		assert.True(t, Is(outer, CodeForbidden))
		assert.Equal(t, CodeForbidden, CodeOf(outer))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestErrorsIsComparesCodeAndMessage(t *testing.T) {
	err := New(CodeBadCredentials, "could not validate credentials")
	require.ErrorIs(t, err, New(CodeBadCredentials, "could not validate credentials"))
	assert.NotErrorIs(t, err, New(CodeBadCredentials, "other"))
}
