package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ UserStore = (*PGUserStore)(nil)

// PGUserStore implements UserStore using PostgreSQL.
type PGUserStore struct {
	db *sql.DB
}

func NewPGUserStore(db *sql.DB) *PGUserStore {
	return &PGUserStore{db: db}
}

const userColumns = `id, email, password_hash, coalesce(refresh_hash, ''), created_at, updated_at`

func (s *PGUserStore) Create(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, password_hash) values($1,$2,$3)`,
		u.ID, u.Email, u.PasswordHash,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *PGUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email)
	return scanUser(row)
}

func (s *PGUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *PGUserStore) SetRefreshHash(ctx context.Context, id, fingerprint string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set refresh_hash=$2, updated_at=now() where id=$1`,
		id, fingerprint,
	)
	if err != nil {
		return err
	}
	return requireRow(res, ErrNotFound)
}

// RotateRefreshHash is a single conditional UPDATE: the row changes only while
// the stored fingerprint still equals the one the caller just verified, so two
// concurrent refreshes with the same token cannot both rotate.
func (s *PGUserStore) RotateRefreshHash(ctx context.Context, id, oldFingerprint, newFingerprint string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set refresh_hash=$3, updated_at=now() where id=$1 and refresh_hash=$2`,
		id, oldFingerprint, newFingerprint,
	)
	if err != nil {
		return err
	}
	return requireRow(res, ErrUnauthorized)
}

func (s *PGUserStore) ClearRefreshHash(ctx context.Context, id string) error {
	// No row guard: clearing an absent fingerprint (or an unknown user) is a
	// no-op, which keeps logout idempotent.
	_, err := s.db.ExecContext(ctx,
		`update users set refresh_hash=null, updated_at=now() where id=$1`, id)
	return err
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.RefreshHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
