package notify

import (
	"testing"

	"resourcehive/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestNewEmailSinkCarriesTLSMode(t *testing.T) {
	secure := NewEmailSink(&config.Config{
		EmailHost:   "smtp.example.edu",
		EmailPort:   587,
		EmailUseTLS: true,
	})
	assert.True(t, secure.useTLS)

	plain := NewEmailSink(&config.Config{
		EmailHost:   "localhost",
		EmailPort:   1025,
		EmailUseTLS: false,
	})
	assert.False(t, plain.useTLS)
}
