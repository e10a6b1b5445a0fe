package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestGenerateAndParse(t *testing.T) {
	m := NewJWTManager(testSecret, time.Minute)

	token, jti, err := m.GenerateAccessToken("user-1", AudienceBackoffice, []string{" secretaria ", "", "operador"})
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	claims, err := m.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, jwt.ClaimStrings{AudienceBackoffice}, claims.Audience)
	assert.Equal(t, []string{"SECRETARIA", "OPERADOR"}, claims.Roles)
	assert.Equal(t, jti, claims.ID)
	assert.True(t, claims.HasRole("operador"))
	assert.False(t, claims.HasRole("ADMIN"))
}

func TestParseRejectsInvalidTokens(t *testing.T) {
	m := NewJWTManager(testSecret, time.Minute)

	t.Run("outro segredo", func(t *testing.T) {
		other := NewJWTManager("ffffffffffffffffffffffffffffffff", time.Minute)
		token, _, err := other.GenerateAccessToken("user-1", AudienceCidadao, []string{"CIDADAO"})
		require.NoError(t, err)
		_, err = m.ParseAndValidate(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("expirado", func(t *testing.T) {
		expired := NewJWTManager(testSecret, -time.Minute)
		token, _, err := expired.GenerateAccessToken("user-1", AudienceCidadao, nil)
		require.NoError(t, err)
		_, err = m.ParseAndValidate(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("emissor diferente", func(t *testing.T) {
		claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "outro",
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = m.ParseAndValidate(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("lixo", func(t *testing.T) {
		_, err := m.ParseAndValidate("abc.def.ghi")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestGenerateRequiresSubject(t *testing.T) {
	m := NewJWTManager(testSecret, time.Minute)
	_, _, err := m.GenerateAccessToken(" ", AudienceCidadao, nil)
	assert.Error(t, err)
}

func TestEffectiveRolesFollowAudience(t *testing.T) {
	tests := []struct {
		name     string
		audience string
		roles    []string
		want     []string
	}{
		{"cidadão ignora backoffice", AudienceCidadao, []string{"CIDADAO", "ADMIN"}, []string{"CIDADAO"}},
		{"backoffice ignora cidadão", AudienceBackoffice, []string{"cidadao", "secretaria"}, []string{"SECRETARIA"}},
		{"audiência desconhecida", "outra", []string{"ADMIN"}, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Claims{Roles: tc.roles, RegisteredClaims: jwt.RegisteredClaims{Audience: jwt.ClaimStrings{tc.audience}}}
			assert.Equal(t, tc.want, c.EffectiveRoles())
		})
	}
	assert.Nil(t, (&Claims{Roles: []string{"ADMIN"}}).EffectiveRoles())
}
