package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "servicos-publicos"

// Audiências aceitas: app do cidadão e backoffice das secretarias.
const (
	AudienceCidadao    = "cidadao"
	AudienceBackoffice = "backoffice"
)

// ErrTokenInvalid cobre assinatura, expiração e claims malformadas.
var ErrTokenInvalid = errors.New("token inválido")

// Claims representa as informações presentes em um JWT de acesso.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole compara papéis sem diferenciar caixa.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if strings.EqualFold(strings.TrimSpace(r), role) {
			return true
		}
	}
	return false
}

// EffectiveRoles restringe os papéis à audiência do token: o app do cidadão
// só concede CIDADAO e o backoffice nunca concede CIDADAO.
func (c *Claims) EffectiveRoles() []string {
	if len(c.Audience) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.Roles))
	for _, r := range c.Roles {
		r = strings.ToUpper(strings.TrimSpace(r))
		switch c.Audience[0] {
		case AudienceCidadao:
			if r == "CIDADAO" {
				out = append(out, r)
			}
		case AudienceBackoffice:
			if r != "" && r != "CIDADAO" {
				out = append(out, r)
			}
		}
	}
	return out
}

// JWTManager encapsula geração e validação de tokens.
type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
}

// NewJWTManager cria o gerenciador com segredo e TTL configurados.
func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), accessTTL: accessTTL}
}

// GenerateAccessToken cria um JWT HS256 e devolve o token e seu jti.
func (m *JWTManager) GenerateAccessToken(subject, audience string, roles []string) (string, string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", "", errors.New("subject obrigatório")
	}
	now := time.Now().UTC()
	jti := uuid.NewString()

	normalized := make([]string, 0, len(roles))
	for _, r := range roles {
		if r = strings.ToUpper(strings.TrimSpace(r)); r != "" {
			normalized = append(normalized, r)
		}
	}

	claims := Claims{
		Roles: normalized,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", "", err
	}

	return signed, jti, nil
}

// ParseAndValidate verifica assinatura, emissor e expiração.
func (m *JWTManager) ParseAndValidate(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
