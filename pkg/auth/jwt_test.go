package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/models"
)

const testSecret = "unit-test-secret"

// TestTokenRoundTrip tests issue and parse of a bearer token
func TestTokenRoundTrip(t *testing.T) {
	user := &models.User{ID: 42, Email: "op@example.com", Active: true}

	token, err := IssueToken(testSecret, user, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

// TestParseTokenWrongSecret tests signature verification
func TestParseTokenWrongSecret(t *testing.T) {
	user := &models.User{ID: 7}
	token, err := IssueToken(testSecret, user, time.Now())
	require.NoError(t, err)

	_, err = ParseToken("other-secret", token)
	require.Error(t, err)
	assert.Equal(t, apierrors.KindUnauthorized, apierrors.KindOf(err))
}

// TestParseTokenExpired tests that expiry is enforced
func TestParseTokenExpired(t *testing.T) {
	user := &models.User{ID: 7}
	token, err := IssueToken(testSecret, user, time.Now().Add(-2*TokenTTL))
	require.NoError(t, err)

	_, err = ParseToken(testSecret, token)
	require.Error(t, err)
	assert.Equal(t, apierrors.KindUnauthorized, apierrors.KindOf(err))
}

// TestParseTokenGarbage tests rejection of non-JWT input
func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken(testSecret, "not-a-token")
	require.Error(t, err)
	assert.Equal(t, apierrors.KindUnauthorized, apierrors.KindOf(err))
}

// TestPasswordHashing tests the bcrypt round trip
func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "correct horse battery staple"))
	assert.False(t, CheckPassword(hash, "wrong password"))
	assert.False(t, CheckPassword("not-a-hash", "anything"))
}
