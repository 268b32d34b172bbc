package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yakovlavrinov/test-qtim/internal/ids"
)

// Service orchestrates register/login/refresh/logout over a UserStore and an
// Issuer. Each user is a two-state machine: no stored refresh fingerprint
// means NoSession, a stored one means ActiveSession with exactly one live
// refresh token.
type Service struct {
	users  UserStore
	issuer *Issuer
}

// NewService constructs the session service.
func NewService(users UserStore, issuer *Issuer) *Service {
	return &Service{users: users, issuer: issuer}
}

// Register creates a credential record for the email and opens a session.
// Returns ErrConflict when the email already has a record; no tokens are
// issued in that case.
func (s *Service) Register(ctx context.Context, email, password string) (TokenPair, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return TokenPair{}, err
	}
	if len(password) < 6 {
		return TokenPair{}, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return TokenPair{}, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return TokenPair{}, err
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return TokenPair{}, err
	}
	user := &User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return TokenPair{}, err
	}
	return s.openSession(ctx, user.ID)
}

// Login authenticates the credentials and opens a fresh session, implicitly
// invalidating whatever refresh token was live before.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return TokenPair{}, err
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, ErrUnauthorized
	}
	return s.openSession(ctx, user.ID)
}

// Refresh rotates the presented refresh token: it is consumed, a new pair is
// issued and the stored fingerprint is replaced with a conditional write.
// A replayed token (already rotated out, or invalidated by logout) fails
// with ErrUnauthorized, which is how reuse of a stolen token gets detected.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	subjectID, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	if !user.HasSession() {
		return TokenPair{}, ErrUnauthorized
	}
	if !VerifyFingerprint(refreshToken, user.RefreshHash) {
		return TokenPair{}, ErrUnauthorized
	}

	pair, err := s.issuer.Issue(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	// Conditional write: only the caller holding the fingerprint that was
	// just verified may rotate. Two concurrent refreshes with the same token
	// cannot both win.
	err = s.users.RotateRefreshHash(ctx, user.ID, user.RefreshHash, FingerprintToken(pair.RefreshToken))
	if err != nil {
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	return pair, nil
}

// Logout closes the user's session. Idempotent: logging out twice, or without
// an active session, succeeds.
func (s *Service) Logout(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.users.ClearRefreshHash(ctx, userID)
}

// VerifyAccess exposes access-token verification to the transport layer.
func (s *Service) VerifyAccess(token string) (string, error) {
	return s.issuer.VerifyAccess(token)
}

func (s *Service) openSession(ctx context.Context, userID string) (TokenPair, error) {
	pair, err := s.issuer.Issue(userID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.users.SetRefreshHash(ctx, userID, FingerprintToken(pair.RefreshToken)); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return email, nil
}
