package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "test-qtim"

// IssuerConfig holds the two signing secrets and their lifetimes. All four
// values are required; secrets must be distinct so a refresh token can never
// pass access-token verification.
type IssuerConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Issuer creates and verifies signed, expiring access/refresh token pairs.
type Issuer struct {
	cfg IssuerConfig
	now func() time.Time
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer)

// WithClock overrides the time source (useful for TTL tests).
func WithClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer validates the configuration and constructs an Issuer.
func NewIssuer(cfg IssuerConfig, opts ...IssuerOption) (*Issuer, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("auth: both signing secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token TTLs must be greater than zero")
	}
	iss := &Issuer{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(iss)
	}
	return iss, nil
}

// Issue signs a fresh access/refresh pair for the subject. Both tokens carry
// only the subject id; the refresh token is additionally fingerprinted by the
// session layer before storage.
func (i *Issuer) Issue(subjectID string) (TokenPair, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return TokenPair{}, errors.New("auth: subject id is required")
	}
	now := i.now().UTC()

	accessExp := now.Add(i.cfg.AccessTTL)
	access, err := i.sign(subjectID, now, accessExp, i.cfg.AccessSecret)
	if err != nil {
		return TokenPair{}, err
	}
	refreshExp := now.Add(i.cfg.RefreshTTL)
	refresh, err := i.sign(subjectID, now, refreshExp, i.cfg.RefreshSecret)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess validates signature and TTL against the access secret and
// returns the subject id.
func (i *Issuer) VerifyAccess(token string) (string, error) {
	return i.verify(token, i.cfg.AccessSecret)
}

// VerifyRefresh validates signature and TTL against the refresh secret and
// returns the subject id.
func (i *Issuer) VerifyRefresh(token string) (string, error) {
	return i.verify(token, i.cfg.RefreshSecret)
}

func (i *Issuer) sign(subjectID string, now, expiresAt time.Time, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (i *Issuer) verify(token string, secret []byte) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	parsed, err := parser.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
