package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashAndCompare(t *testing.T) {
	hash, err := HashPassword("hunter2", 4)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.NoError(t, ComparePassword(hash, "hunter2"))
	assert.Error(t, ComparePassword(hash, "wrong"))
}

func TestResolveAgentHashPrefersConfiguredHash(t *testing.T) {
	preHashed, err := HashPassword("hunter2", 4)
	require.NoError(t, err)

	resolved, err := ResolveAgentHash(preHashed, "ignored-plaintext", 4)
	require.NoError(t, err)
	assert.Equal(t, preHashed, resolved)
}

func TestResolveAgentHashHashesPlaintext(t *testing.T) {
	resolved, err := ResolveAgentHash("", "hunter2", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(resolved, "hunter2"))
}

func TestResolveAgentHashFailsWithoutCredential(t *testing.T) {
	_, err := ResolveAgentHash("", "", 4)
	assert.Error(t, err)
}
