package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulse-engage/backend/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", 24)
	userID := uuid.New()

	token, err := svc.Generate(userID, "alex@example.com", string(models.RoleAdmin))
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "alex@example.com", claims.Email)
	assert.Equal(t, string(models.RoleAdmin), claims.Role)
}

func TestJWTValidateRejectsGarbage(t *testing.T) {
	svc := NewJWTService("test-secret", 24)
	_, err := svc.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTService("secret-a", 24)
	verifier := NewJWTService("secret-b", 24)

	token, err := issuer.Generate(uuid.New(), "alex@example.com", string(models.RoleParticipant))
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidateRejectsExpired(t *testing.T) {
	svc := NewJWTService("test-secret", -1)

	token, err := svc.Generate(uuid.New(), "alex@example.com", string(models.RoleParticipant))
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
