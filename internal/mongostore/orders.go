package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/dukerupert/goodboy/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type lineItemDoc struct {
	ProductID  int    `bson:"product_id,omitempty"`
	Size       string `bson:"size,omitempty"`
	Name       string `bson:"name"`
	Quantity   int    `bson:"quantity"`
	PriceCents int64  `bson:"price_cents"`
	Image      string `bson:"image,omitempty"`
}

type customerDoc struct {
	Name          string `bson:"name"`
	Email         string `bson:"email"`
	Address       string `bson:"address,omitempty"`
	City          string `bson:"city,omitempty"`
	Zip           string `bson:"zip,omitempty"`
	PaymentMethod string `bson:"payment_method,omitempty"`
}

type orderDoc struct {
	ID               string        `bson:"_id"`
	Items            []lineItemDoc `bson:"items"`
	TotalCents       int64         `bson:"total_cents"`
	Customer         customerDoc   `bson:"customer"`
	CustomerEmail    string        `bson:"customer_email"`
	PaymentStatus    string        `bson:"payment_status"`
	Status           string        `bson:"status"`
	PaymentSessionID string        `bson:"payment_session_id,omitempty"`
	CreatedAt        time.Time     `bson:"created_at"`
	UpdatedAt        time.Time     `bson:"updated_at"`
}

func toOrderDoc(o *domain.Order) orderDoc {
	doc := orderDoc{
		ID:         o.ID,
		TotalCents: domain.ToMinorUnits(o.Total),
		Customer: customerDoc{
			Name:          o.Customer.Name,
			Email:         o.Customer.Email,
			Address:       o.Customer.Address,
			City:          o.Customer.City,
			Zip:           o.Customer.Zip,
			PaymentMethod: o.Customer.PaymentMethod,
		},
		CustomerEmail:    domain.NormalizeEmail(o.Customer.Email),
		PaymentStatus:    string(o.PaymentStatus),
		Status:           string(o.Status),
		PaymentSessionID: o.PaymentSessionID,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	for _, li := range o.Items {
		doc.Items = append(doc.Items, lineItemDoc{
			ProductID:  li.ProductID,
			Size:       li.Size,
			Name:       li.Name,
			Quantity:   li.Quantity,
			PriceCents: domain.ToMinorUnits(li.Price),
			Image:      li.Image,
		})
	}
	return doc
}

func (d orderDoc) order() domain.Order {
	o := domain.Order{
		ID:    d.ID,
		Total: domain.FromMinorUnits(d.TotalCents),
		Customer: domain.Customer{
			Name:          d.Customer.Name,
			Email:         d.Customer.Email,
			Address:       d.Customer.Address,
			City:          d.Customer.City,
			Zip:           d.Customer.Zip,
			PaymentMethod: d.Customer.PaymentMethod,
		},
		PaymentStatus:    domain.PaymentStatus(d.PaymentStatus),
		Status:           domain.FulfillmentStatus(d.Status),
		PaymentSessionID: d.PaymentSessionID,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	for _, li := range d.Items {
		o.Items = append(o.Items, domain.LineItem{
			ProductID: li.ProductID,
			Size:      li.Size,
			Name:      li.Name,
			Quantity:  li.Quantity,
			Price:     domain.FromMinorUnits(li.PriceCents),
			Image:     li.Image,
		})
	}
	return o
}

func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) error {
	_, err := s.orders.InsertOne(ctx, toOrderDoc(o))
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrDuplicatePaymentSession
	}
	if err != nil {
		return domain.Internal(err, "mongostore.CreateOrder", "failed to create order")
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.findOrder(ctx, "mongostore.GetOrder", bson.M{"_id": id})
}

func (s *Store) GetOrderByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	if sessionID == "" {
		return nil, domain.ErrOrderNotFound
	}
	return s.findOrder(ctx, "mongostore.GetOrderByPaymentSession", bson.M{"payment_session_id": sessionID})
}

func (s *Store) findOrder(ctx context.Context, op string, filter bson.M) (*domain.Order, error) {
	var doc orderDoc
	err := s.orders.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to get order")
	}
	o := doc.order()
	return &o, nil
}

func (s *Store) ListOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	return s.listOrders(ctx, "mongostore.ListOrdersByEmail", bson.M{"customer_email": domain.NormalizeEmail(email)})
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.listOrders(ctx, "mongostore.ListOrders", bson.M{})
}

func (s *Store) listOrders(ctx context.Context, op string, filter bson.M) ([]domain.Order, error) {
	cur, err := s.orders.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}

	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, domain.Internal(err, op, "failed to decode orders")
	}

	orders := make([]domain.Order, len(docs))
	for i, d := range docs {
		orders[i] = d.order()
	}
	return orders, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status domain.FulfillmentStatus, at time.Time) (*domain.Order, error) {
	var doc orderDoc
	err := s.orders.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": at.UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "mongostore.UpdateOrderStatus", "failed to update order")
	}
	o := doc.order()
	return &o, nil
}
