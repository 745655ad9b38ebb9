package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

// JWTClaims represents the custom claims in tokens issued by TokenAuthority.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Scope string `json:"scope"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

// TokenAuthority signs and validates short-lived HS256 tokens. One instance
// signs outbound gateway calls; another validates inbound API calls.
type TokenAuthority struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenAuthority creates a TokenAuthority. An empty secret is rejected.
func NewTokenAuthority(secret, issuer string, ttl time.Duration) (*TokenAuthority, error) {
	if secret == "" {
		return nil, errors.New("token authority: empty signing secret")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenAuthority{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Sign issues an access token for subject with the given scope.
func (a *TokenAuthority) Sign(subject, scope string) (string, error) {
	now := a.now()
	claims := JWTClaims{
		Sub:   subject,
		Scope: scope,
		Type:  "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Issuer:    a.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateAccessToken parses and verifies a token issued with the same secret.
func (a *TokenAuthority) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Type != "access" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}
	return claims, nil
}

// Source returns a port.TokenSource that signs a fresh token per call.
func (a *TokenAuthority) Source(subject, scope string) *SignedTokenSource {
	return &SignedTokenSource{authority: a, subject: subject, scope: scope}
}

// SignedTokenSource adapts TokenAuthority to port.TokenSource.
type SignedTokenSource struct {
	authority *TokenAuthority
	subject   string
	scope     string
}

// Token implements port.TokenSource.
func (s *SignedTokenSource) Token() (string, error) {
	return s.authority.Sign(s.subject, s.scope)
}
