package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/apperror"
)

// Service orchestrates registration, login, refresh rotation and logout over
// injected stores, so tests can substitute in-memory implementations.
type Service struct {
	users  UserStore
	tokens RefreshTokenStore
	hasher PasswordHasher
	issuer *TokenIssuer
}

func NewService(users UserStore, tokens RefreshTokenStore, hasher PasswordHasher, issuer *TokenIssuer) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		issuer: issuer,
	}
}

// Register creates a new user. The role defaults to USER when empty; the
// email lookup is case-sensitive, matching the unique index.
func (s *Service) Register(ctx context.Context, email, password string, role Role) (User, error) {
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return User{}, apperror.BadRequest("role must be USER or ADMIN")
	}

	if _, found, err := s.users.GetByEmail(ctx, email); err != nil {
		return User{}, err
	} else if found {
		return User{}, apperror.UserExists()
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	user := User{
		ID:           id.String(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return User{}, err
	}

	return user, nil
}

// Login checks credentials and mints an access+refresh pair, persisting the
// refresh token. Unknown email and wrong password are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (User, TokenPair, error) {
	user, found, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return User{}, TokenPair{}, err
	}
	if !found || !s.hasher.Verify(user.PasswordHash, password) {
		return User{}, TokenPair{}, apperror.InvalidCredentials()
	}

	pair, err := s.issuePair(ctx, user.ID, user.Role)
	if err != nil {
		return User{}, TokenPair{}, err
	}

	return user, pair, nil
}

// Rotate redeems a refresh token exactly once: cryptographic verification,
// then an atomic store-level swap of old for new. Any failure leaves the
// store untouched and surfaces as an invalid-token error.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, apperror.InvalidToken()
	}

	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	// Usability check before minting anything; the store re-checks under a
	// row lock, so this cannot race into a double redemption.
	record, found, err := s.tokens.GetByToken(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if !found || !record.Usable(time.Now().UTC()) || record.UserID != claims.Subject {
		return TokenPair{}, apperror.InvalidToken()
	}

	access, err := s.issuer.IssueAccess(claims.Subject, claims.Role)
	if err != nil {
		return TokenPair{}, err
	}
	newRefresh, err := s.issuer.IssueRefresh(claims.Subject, claims.Role)
	if err != nil {
		return TokenPair{}, err
	}

	newExpiry := time.Now().UTC().Add(s.issuer.RefreshTTL())
	if err := s.tokens.Rotate(ctx, refreshToken, newRefresh, claims.Subject, newExpiry); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: newRefresh}, nil
}

// Logout revokes the presented refresh token. Revocation is a store-level
// idempotent update, so garbage input is accepted as a no-op success.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}

	return s.tokens.Revoke(ctx, refreshToken)
}

// BootstrapAdmin creates the initial ADMIN account when both values are set
// and the email is not taken. Missing env is not an error; a half-configured
// pair is.
func (s *Service) BootstrapAdmin(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)

	if email == "" && password == "" {
		return nil
	}
	if email == "" || password == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("ADMIN_PASSWORD must be at least %d characters", minPasswordLen)
	}

	if _, found, err := s.users.GetByEmail(ctx, email); err != nil {
		return err
	} else if found {
		return nil
	}

	_, err := s.Register(ctx, email, password, RoleAdmin)
	return err
}

func (s *Service) issuePair(ctx context.Context, userID string, role Role) (TokenPair, error) {
	access, err := s.issuer.IssueAccess(userID, role)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := s.issuer.IssueRefresh(userID, role)
	if err != nil {
		return TokenPair{}, err
	}

	expiresAt := time.Now().UTC().Add(s.issuer.RefreshTTL())
	if err := s.tokens.Create(ctx, refresh, userID, expiresAt); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
