package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	userID := uuid.New()
	token, err := GenerateToken(userID, "owner@bisonbooks.test", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "owner@bisonbooks.test", claims.Email)

	_, err = ValidateToken(token, "other-secret")
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	token, err := GenerateToken(uuid.New(), "owner@bisonbooks.test", "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, "secret")
	assert.Error(t, err)
}

func TestVerifyHMACSHA512Hex(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	sig := SignHMACSHA512Hex(body, "sk_test")

	assert.Len(t, sig, 128)
	assert.True(t, VerifyHMACSHA512Hex(body, sig, "sk_test"))
	assert.False(t, VerifyHMACSHA512Hex(body, sig, "sk_live"))
	assert.False(t, VerifyHMACSHA512Hex([]byte(`{}`), sig, "sk_test"))
}

func TestGenerateReference(t *testing.T) {
	ref := GenerateReference("SUB")
	assert.Regexp(t, regexp.MustCompile(`^SUB_\d{8}_[A-Z0-9]{10}$`), ref)
	assert.NotEqual(t, ref, GenerateReference("SUB"))
}
