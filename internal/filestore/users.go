package filestore

import (
	"context"
	"slices"
	"time"

	"github.com/dukerupert/goodboy/internal/domain"
)

// userRecord is the on-disk user shape; it keeps the password hash that
// domain.User hides from JSON.
type userRecord struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"password"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (r userRecord) user() *domain.User {
	return &domain.User{
		ID:           r.ID,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		Phone:        r.Phone,
		PasswordHash: r.PasswordHash,
		IsAdmin:      r.IsAdmin,
		CreatedAt:    r.CreatedAt,
	}
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.users.load()
	if err != nil {
		return domain.Internal(err, "filestore.CreateUser", "failed to load users")
	}

	email := domain.NormalizeEmail(u.Email)
	if slices.ContainsFunc(users, func(r userRecord) bool { return domain.NormalizeEmail(r.Email) == email }) {
		return domain.ErrEmailTaken
	}

	users = append(users, userRecord{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        email,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt,
	})
	if err := s.users.save(users); err != nil {
		return domain.Internal(err, "filestore.CreateUser", "failed to save users")
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.findUser("filestore.GetUser", func(r userRecord) bool { return r.ID == id })
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	return s.findUser("filestore.GetUserByEmail", func(r userRecord) bool {
		return domain.NormalizeEmail(r.Email) == email
	})
}

func (s *Store) SetAdmin(ctx context.Context, id string, admin bool, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.users.load()
	if err != nil {
		return domain.Internal(err, "filestore.SetAdmin", "failed to load users")
	}
	i := slices.IndexFunc(users, func(r userRecord) bool { return r.ID == id })
	if i < 0 {
		return domain.ErrUserNotFound
	}

	users[i].IsAdmin = admin
	if newHash != "" {
		users[i].PasswordHash = newHash
	}
	if err := s.users.save(users); err != nil {
		return domain.Internal(err, "filestore.SetAdmin", "failed to save users")
	}
	return nil
}

func (s *Store) findUser(op string, match func(userRecord) bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.users.load()
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load users")
	}
	i := slices.IndexFunc(users, match)
	if i < 0 {
		return nil, domain.ErrUserNotFound
	}
	return users[i].user(), nil
}
