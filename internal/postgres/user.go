package postgres

import (
	"context"
	"errors"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/jackc/pgx/v5"
)

var _ domain.UserStore = (*Store)(nil)

const userColumns = `id, first_name, last_name, email, phone, password_hash, is_admin, created_at`

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.FirstName, u.LastName, domain.NormalizeEmail(u.Email), u.Phone,
		u.PasswordHash, u.IsAdmin, u.CreatedAt)
	if _, ok := uniqueConstraint(err); ok {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return domain.Internal(err, "user.create", "failed to create user")
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, "user.get", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, "user.get_by_email",
		`SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, domain.NormalizeEmail(email))
}

func (s *Store) getUser(ctx context.Context, op, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone,
		&u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to get user")
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// SetAdmin keeps the current hash when newHash is empty.
func (s *Store) SetAdmin(ctx context.Context, id string, admin bool, newHash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET is_admin = $2, password_hash = COALESCE(NULLIF($3, ''), password_hash)
		WHERE id = $1`, id, admin, newHash)
	if err != nil {
		return domain.Internal(err, "user.set_admin", "failed to update user")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
