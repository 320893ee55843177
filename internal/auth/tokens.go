package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskboard/internal/apperror"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims is the signed payload carried by both token kinds. Only the subject
// id and role matter to the rest of the system.
type Claims struct {
	jwt.RegisteredClaims
	Role      Role   `json:"role"`
	TokenType string `json:"typ"`
}

// TokenIssuer signs and verifies access and refresh tokens. The two secrets
// are distinct so a leaked refresh secret cannot forge access tokens and vice
// versa.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (i *TokenIssuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *TokenIssuer) IssueAccess(userID string, role Role) (string, error) {
	return i.sign(userID, role, tokenTypeAccess, i.accessSecret, i.accessTTL)
}

func (i *TokenIssuer) IssueRefresh(userID string, role Role) (string, error) {
	return i.sign(userID, role, tokenTypeRefresh, i.refreshSecret, i.refreshTTL)
}

func (i *TokenIssuer) sign(userID string, role Role, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:      role,
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}

	return signed, nil
}

// VerifyAccess rejects bad signatures, malformed tokens and expired tokens
// with the same error; callers never learn which check failed.
func (i *TokenIssuer) VerifyAccess(token string) (Claims, error) {
	return i.verify(token, tokenTypeAccess, i.accessSecret)
}

func (i *TokenIssuer) VerifyRefresh(token string) (Claims, error) {
	return i.verify(token, tokenTypeRefresh, i.refreshSecret)
}

func (i *TokenIssuer) verify(token, tokenType string, secret []byte) (Claims, error) {
	claims := Claims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Claims{}, apperror.InvalidToken()
	}
	if claims.TokenType != tokenType || claims.Subject == "" {
		return Claims{}, apperror.InvalidToken()
	}

	return claims, nil
}
