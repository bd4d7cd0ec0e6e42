package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors for token operations.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrTokenSigningFailed  = errors.New("failed to sign token")
	ErrInvalidSecretLength = errors.New("token secret must be at least 32 characters")
)

// TokenConfig holds configuration for token generation and validation.
type TokenConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string

	// Issuer is the token issuer claim. Default: "obsync".
	Issuer string

	// TokenDuration is the lifetime of issued tokens. Default: 24 hours.
	TokenDuration time.Duration
}

// Claims are the JWT claims carried by Obsync bearer tokens. They map
// directly onto a Principal.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the unique identifier for the principal.
	UserID string `json:"uid"`

	// Scopes is the principal's scope set.
	Scopes []string `json:"scopes"`
}

// TokenService mints and validates HS256 bearer tokens and resolves them to
// principals.
type TokenService struct {
	config TokenConfig
}

// NewTokenService creates a token service with the given configuration.
func NewTokenService(config TokenConfig) (*TokenService, error) {
	if len(config.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	if config.Issuer == "" {
		config.Issuer = "obsync"
	}
	if config.TokenDuration == 0 {
		config.TokenDuration = 24 * time.Hour
	}
	return &TokenService{config: config}, nil
}

// Mint creates a signed token for the given user id and scopes.
func (s *TokenService) Mint(userID string, scopes []Scope) (string, error) {
	now := time.Now()
	strScopes := make([]string, len(scopes))
	for i, sc := range scopes {
		strScopes[i] = string(sc)
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenDuration)),
		},
		UserID: userID,
		Scopes: strScopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", ErrTokenSigningFailed
	}
	return signed, nil
}

// Resolve validates a token string and returns the principal it carries.
func (s *TokenService) Resolve(tokenString string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
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

	scopes := make([]Scope, 0, len(claims.Scopes))
	for _, sc := range claims.Scopes {
		scope := Scope(sc)
		if scope.IsValid() {
			scopes = append(scopes, scope)
		}
	}

	return &Principal{
		UserID:   claims.UserID,
		Scopes:   scopes,
		AuthType: AuthTypeBearer,
	}, nil
}
