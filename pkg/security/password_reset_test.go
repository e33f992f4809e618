package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHashResetToken(t *testing.T) {
	first := hashResetToken("some-token")
	second := hashResetToken("some-token")
	other := hashResetToken("other-token")

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.Len(t, first, 64)
	assert.NotContains(t, first, "some-token")
}

func TestResetPasswordRejectsShortPassword(t *testing.T) {
	auth := NewAuthenticator(nil, nil, "test-secret", time.Hour, time.Hour, nil, zap.NewNop())

	err := auth.ResetPassword("any-token", "short")

	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
