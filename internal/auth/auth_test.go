package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	dErrors "github.com/karlutxo/zk-tools/pkg/domain-errors"
)

func newService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return New("test-signing-key", "admin", string(hash), ttl)
}

func TestLoginAndVerify(t *testing.T) {
	svc := newService(t, time.Hour)

	token, err := svc.Login("admin", "s3cret")
	require.NoError(t, err)

	username, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newService(t, time.Hour)

	_, err := svc.Login("admin", "wrong")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))

	_, err = svc.Login("intruder", "s3cret")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func TestLoginWithoutConfiguredAccount(t *testing.T) {
	svc := New("key", "", "", time.Hour)
	_, err := svc.Login("admin", "s3cret")
	require.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := newService(t, -time.Minute)

	token, err := svc.Login("admin", "s3cret")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestVerifyRejectsForeignToken(t *testing.T) {
	svc := newService(t, time.Hour)
	other := newService(t, time.Hour)
	other.signingKey = []byte("another-key")

	token, err := other.Login("admin", "s3cret")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := newService(t, time.Hour)
	_, err := svc.Verify("not-a-token")
	require.Error(t, err)
}
