package main

import (
	"bytes"
	"errors"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-round-settlement/internal/config"
	"casino-round-settlement/internal/logging"
)

func TestJWTSecretConfigured(t *testing.T) {
	secret, err := jwtSecret(&config.Config{Env: "production", JWTSecret: "s3cret"}, nil, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "s3cret", secret)
}

func TestJWTSecretRequiredInProduction(t *testing.T) {
	_, err := jwtSecret(&config.Config{Env: "production"}, bytes.NewReader(make([]byte, 32)), logging.Discard())
	assert.Error(t, err)
}

func TestJWTSecretEphemeral(t *testing.T) {
	secret, err := jwtSecret(&config.Config{Env: "development"}, bytes.NewReader(bytes.Repeat([]byte{0xab}, 32)), logging.Discard())
	require.NoError(t, err)
	assert.Len(t, secret, 64)
	assert.Equal(t, "abab", secret[:4])
}

func TestJWTSecretEntropyFailure(t *testing.T) {
	boom := errors.New("entropy exhausted")

	_, err := jwtSecret(&config.Config{Env: "development"}, iotest.ErrReader(boom), logging.Discard())
	assert.ErrorIs(t, err, boom)

	// A short read is a failure too.
	_, err = jwtSecret(&config.Config{Env: "development"}, bytes.NewReader(make([]byte, 8)), logging.Discard())
	assert.Error(t, err)
}
