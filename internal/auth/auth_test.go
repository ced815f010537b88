package auth

import (
	"testing"

	"github.com/kaiwen7/typebattle-backend/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService() *Service {
	return NewService(config.Config{JWTSecret: "test-secret"})
}

func TestGuestTokenRoundTrip(t *testing.T) {
	s := testService()

	token, playerID, err := s.IssueGuestToken("Alice")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, playerID)

	gotID, gotName, err := s.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, playerID, gotID)
	assert.Equal(t, "Alice", gotName)
}

func TestIssueGuestTokenEmptyName(t *testing.T) {
	_, _, err := testService().IssueGuestToken("")
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, _, err := testService().ParseToken("not-a-token")
	assert.Error(t, err)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := testService().IssueGuestToken("Alice")
	require.NoError(t, err)

	other := NewService(config.Config{JWTSecret: "different"})
	_, _, err = other.ParseToken(token)
	assert.Error(t, err)
}

func TestGuestTokensAreUnique(t *testing.T) {
	s := testService()
	_, id1, err := s.IssueGuestToken("Alice")
	require.NoError(t, err)
	_, id2, err := s.IssueGuestToken("Alice")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}
