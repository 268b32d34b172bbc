package auth

import "context"

// UserStore describes persistence operations required by the session layer.
type UserStore interface {
	// Create inserts a new credential record. Returns ErrConflict when the
	// email is already taken.
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)

	// SetRefreshHash unconditionally overwrites the stored refresh
	// fingerprint, discarding whatever session was live before.
	SetRefreshHash(ctx context.Context, id, fingerprint string) error

	// RotateRefreshHash replaces the fingerprint only while it still equals
	// oldFingerprint. Returns ErrUnauthorized when the guard no longer
	// matches: a concurrent rotation or logout won the race.
	RotateRefreshHash(ctx context.Context, id, oldFingerprint, newFingerprint string) error

	// ClearRefreshHash removes the fingerprint. Idempotent: clearing an
	// already empty field is not an error.
	ClearRefreshHash(ctx context.Context, id string) error
}
