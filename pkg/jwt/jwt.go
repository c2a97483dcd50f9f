package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the identity-service access token claims this backend relies on.
// `sub` carries the identity id.
type Claims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// IdentityID parses the subject as a uuid.
func (c *Claims) IdentityID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// MetadataString returns a trimmed string metadata value, or "".
func (c *Claims) MetadataString(key string) string {
	if c.UserMetadata == nil {
		return ""
	}
	if v, ok := c.UserMetadata[key].(string); ok {
		return v
	}
	return ""
}

// JWTService verifies HS256 tokens issued by the hosted identity service
type JWTService struct {
	secret   []byte
	audience string
}

var signJWTToken = func(token *jwt.Token, secret []byte) (string, error) {
	return token.SignedString(secret)
}

// NewJWTService creates a new JWT service. An empty audience disables the aud check.
func NewJWTService(secret, audience string) *JWTService {
	return &JWTService{
		secret:   []byte(secret),
		audience: audience,
	}
}

// ValidateToken validates a JWT token and returns the claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.IdentityID(); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GenerateToken signs a token the way the identity service does. Used by local
// tooling and tests; production tokens come from the identity service.
func (s *JWTService) GenerateToken(identityID uuid.UUID, email string, metadata map[string]any, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email:        email,
		UserMetadata: metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Second)),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return signJWTToken(token, s.secret)
}
