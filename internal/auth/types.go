package auth

import "time"

// User is the credential record backing a session. RefreshHash holds the
// fingerprint of the single currently valid refresh token; an empty value
// means the user has no active session.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	RefreshHash  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasSession reports whether a refresh token is currently live for the user.
func (u *User) HasSession() bool { return u.RefreshHash != "" }

// TokenPair carries a freshly issued access/refresh token pair together with
// their expirations.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
