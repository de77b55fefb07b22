package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigAuth(t *testing.T) {
	cfg := Config{Namespace: "reqjourney", Database: "history", Username: "ops", Password: "secret"}

	for _, level := range []string{"", AuthRoot} {
		cfg.AuthLevel = level
		auth, err := cfg.auth()
		require.NoError(t, err)
		assert.Equal(t, "ops", auth.Username)
		assert.Empty(t, auth.Namespace, "root users sign in without a namespace")
	}

	cfg.AuthLevel = AuthDatabase
	auth, err := cfg.auth()
	require.NoError(t, err)
	assert.Equal(t, "reqjourney", auth.Namespace)
	assert.Equal(t, "history", auth.Database)

	cfg.AuthLevel = "namespace"
	_, err = cfg.auth()
	assert.ErrorIs(t, err, ErrInvalidAuthLevel)
}
