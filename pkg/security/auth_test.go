package security

import (
	"testing"
	"time"

	"resourcehive/pkg/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestGenerateAndParseJWT(t *testing.T) {
	auth := NewAuthenticator(nil, nil, "test-secret", time.Hour, time.Hour, nil, zap.NewNop())
	user := &models.User{ID: 42, Username: "jdoe", Role: "admin"}

	token, err := auth.GenerateJWT(user, "session-key-1", time.Now().Add(time.Hour))
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := auth.parseToken(token)
	assert.NoError(t, err)
	assert.Equal(t, float64(42), claims["userID"])
	assert.Equal(t, "admin", claims["role"])
	assert.Equal(t, "jdoe", claims["username"])
	assert.Equal(t, "session-key-1", claims["sid"])
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthenticator(nil, nil, "secret-a", time.Hour, time.Hour, nil, zap.NewNop())
	verifier := NewAuthenticator(nil, nil, "secret-b", time.Hour, time.Hour, nil, zap.NewNop())
	user := &models.User{ID: 1, Username: "jdoe", Role: "user"}

	token, err := issuer.GenerateJWT(user, "sid", time.Now().Add(time.Hour))
	assert.NoError(t, err)

	_, err = verifier.parseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := NewAuthenticator(nil, nil, "test-secret", time.Hour, time.Hour, nil, zap.NewNop())
	user := &models.User{ID: 1, Username: "jdoe", Role: "user"}

	token, err := auth.GenerateJWT(user, "sid", time.Now().Add(-time.Minute))
	assert.NoError(t, err)

	_, err = auth.parseToken(token)
	assert.Error(t, err)
}
