package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the relational backing store. All queries filter by owner
// where the operation is owner-scoped; moderator variants are separate
// methods.
type Store struct{ DB *pgxpool.Pool }

var (
	ErrNotFound  = errors.New("not_found")
	ErrDuplicate = errors.New("duplicate_value")
)

// mapErr converts driver-level errors into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, u *User) error {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO users(email, username, phone_number, password_hash, is_moderator)
		VALUES($1,$2,$3,$4,$5)
		RETURNING id, is_active, created_at
	`, u.Email, u.Username, u.PhoneNumber, u.PasswordHash, u.IsModerator).
		Scan(&u.ID, &u.IsActive, &u.CreatedAt)
	return mapErr(err)
}

const userCols = `id, email, username, coalesce(phone_number,''), password_hash, is_active, is_moderator, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PhoneNumber, &u.PasswordHash, &u.IsActive, &u.IsModerator, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.DB.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email))
}

func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	return scanUser(s.DB.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

// UpdateProfile changes the fields a user may edit about themselves.
func (s *Store) UpdateProfile(ctx context.Context, u *User) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE users SET username=$2, phone_number=$3 WHERE id=$1
	`, u.ID, u.Username, u.PhoneNumber)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns regular accounts for the moderation screen.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+userCols+` FROM users WHERE is_moderator=false ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.PhoneNumber, &u.PasswordHash, &u.IsActive, &u.IsModerator, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// BlockUser deactivates an account. Blocking is one-directional and
// idempotent.
func (s *Store) BlockUser(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, `UPDATE users SET is_active=false WHERE id=$1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
