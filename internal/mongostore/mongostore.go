// Package mongostore implements the store contracts on MongoDB. Money is
// stored as integer cents.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/goodboy/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	ProductsCollection = "products"
	UsersCollection    = "users"
	OrdersCollection   = "orders"
	EventsCollection   = "payment_events"
)

// Store implements the domain store contracts against one database.
type Store struct {
	db       *mongo.Database
	products *mongo.Collection
	users    *mongo.Collection
	orders   *mongo.Collection
	events   *mongo.Collection
}

var (
	_ domain.ProductStore = (*Store)(nil)
	_ domain.UserStore    = (*Store)(nil)
	_ domain.OrderStore   = (*Store)(nil)
	_ domain.EventLedger  = (*Store)(nil)
)

// Connect opens a client, verifies it with a ping and returns the database.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(50)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// New wraps a database.
func New(db *mongo.Database) *Store {
	return &Store{
		db:       db,
		products: db.Collection(ProductsCollection),
		users:    db.Collection(UsersCollection),
		orders:   db.Collection(OrdersCollection),
		events:   db.Collection(EventsCollection),
	}
}

// EnsureIndexes creates the unique and lookup indexes the store relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[*mongo.Collection][]mongo.IndexModel{
		s.products: {
			{Keys: bson.D{{Key: "name_lower", Value: 1}}},
		},
		s.users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		s.orders: {
			{
				Keys: bson.D{{Key: "payment_session_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"payment_session_id": bson.M{"$type": "string"}}),
			},
			{Keys: bson.D{{Key: "customer_email", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
	}

	for coll, models := range specs {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// Disconnect closes the underlying client.
func (s *Store) Disconnect(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}
