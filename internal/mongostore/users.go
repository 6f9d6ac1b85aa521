package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/dukerupert/goodboy/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	FirstName    string    `bson:"first_name"`
	LastName     string    `bson:"last_name"`
	Email        string    `bson:"email"`
	Phone        string    `bson:"phone,omitempty"`
	PasswordHash string    `bson:"password_hash"`
	IsAdmin      bool      `bson:"is_admin"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (d userDoc) user() *domain.User {
	return &domain.User{
		ID:           d.ID,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		Phone:        d.Phone,
		PasswordHash: d.PasswordHash,
		IsAdmin:      d.IsAdmin,
		CreatedAt:    d.CreatedAt,
	}
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.users.InsertOne(ctx, userDoc{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        domain.NormalizeEmail(u.Email),
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return domain.Internal(err, "mongostore.CreateUser", "failed to create user")
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.findUser(ctx, "mongostore.GetUser", bson.M{"_id": id})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, "mongostore.GetUserByEmail", bson.M{"email": domain.NormalizeEmail(email)})
}

func (s *Store) findUser(ctx context.Context, op string, filter bson.M) (*domain.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to get user")
	}
	return doc.user(), nil
}

func (s *Store) SetAdmin(ctx context.Context, id string, admin bool, newHash string) error {
	set := bson.M{"is_admin": admin}
	if newHash != "" {
		set["password_hash"] = newHash
	}

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return domain.Internal(err, "mongostore.SetAdmin", "failed to update user")
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
