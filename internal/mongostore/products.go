package mongostore

import (
	"context"
	"errors"
	"strings"

	"github.com/dukerupert/goodboy/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type variantDoc struct {
	Size       string `bson:"size"`
	PriceCents int64  `bson:"price_cents"`
	Stock      int    `bson:"stock"`
}

type productDoc struct {
	ID          int          `bson:"_id"`
	Name        string       `bson:"name"`
	NameLower   string       `bson:"name_lower"`
	Description string       `bson:"description,omitempty"`
	Category    string       `bson:"category,omitempty"`
	Image       string       `bson:"image,omitempty"`
	PriceCents  int64        `bson:"price_cents"`
	Stock       int          `bson:"stock"`
	Variants    []variantDoc `bson:"variants,omitempty"`
}

func toProductDoc(p *domain.Product) productDoc {
	doc := productDoc{
		ID:          p.ID,
		Name:        p.Name,
		NameLower:   strings.ToLower(strings.TrimSpace(p.Name)),
		Description: p.Description,
		Category:    p.Category,
		Image:       p.Image,
		PriceCents:  domain.ToMinorUnits(p.Price),
		Stock:       p.Stock,
	}
	for _, v := range p.Variants {
		doc.Variants = append(doc.Variants, variantDoc{
			Size:       v.Size,
			PriceCents: domain.ToMinorUnits(v.Price),
			Stock:      v.Stock,
		})
	}
	return doc
}

func (d productDoc) product() domain.Product {
	p := domain.Product{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Image:       d.Image,
		Price:       domain.FromMinorUnits(d.PriceCents),
		Stock:       d.Stock,
	}
	for _, v := range d.Variants {
		p.Variants = append(p.Variants, domain.Variant{
			Size:  v.Size,
			Price: domain.FromMinorUnits(v.PriceCents),
			Stock: v.Stock,
		})
	}
	return p
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	cur, err := s.products.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, domain.Internal(err, "mongostore.ListProducts", "failed to list products")
	}

	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, domain.Internal(err, "mongostore.ListProducts", "failed to decode products")
	}

	products := make([]domain.Product, len(docs))
	for i, d := range docs {
		products[i] = d.product()
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int) (*domain.Product, error) {
	return s.findProduct(ctx, "mongostore.GetProduct", bson.M{"_id": id})
}

func (s *Store) FindProductByName(ctx context.Context, name string) (*domain.Product, error) {
	return s.findProduct(ctx, "mongostore.FindProductByName", bson.M{"name_lower": strings.ToLower(strings.TrimSpace(name))})
}

func (s *Store) findProduct(ctx context.Context, op string, filter bson.M) (*domain.Product, error) {
	var doc productDoc
	err := s.products.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to get product")
	}
	p := doc.product()
	return &p, nil
}

func (s *Store) UpsertProduct(ctx context.Context, p *domain.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	_, err := s.products.ReplaceOne(ctx, bson.M{"_id": p.ID}, toProductDoc(p), options.Replace().SetUpsert(true))
	if err != nil {
		return domain.Internal(err, "mongostore.UpsertProduct", "failed to save product")
	}
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, id int, u domain.ProductUpdate) (*domain.Product, error) {
	current, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := u.Apply(current); err != nil {
		return nil, err
	}

	set := bson.M{}
	doc := toProductDoc(current)
	if u.Price != nil {
		set["price_cents"] = doc.PriceCents
	}
	if u.Stock != nil {
		set["stock"] = doc.Stock
	}
	if u.Variants != nil {
		set["variants"] = doc.Variants
	}
	if len(set) == 0 {
		return current, nil
	}

	var updated productDoc
	err = s.products.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "mongostore.UpdateProduct", "failed to update product")
	}
	p := updated.product()
	return &p, nil
}

// clampedSubtract is max(0, field - qty) as an aggregation expression.
func clampedSubtract(field string, qty int) bson.M {
	return bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{field, qty}}}}
}

// DecrementStock uses a pipeline update so the read and the clamped write
// happen in one server-side operation.
func (s *Store) DecrementStock(ctx context.Context, id int, size string, qty int) (domain.StockAdjustment, error) {
	adj := domain.StockAdjustment{ProductID: id, Size: size}

	filter := bson.M{"_id": id}
	var update mongo.Pipeline
	if size == "" {
		update = mongo.Pipeline{{{Key: "$set", Value: bson.M{"stock": clampedSubtract("$stock", qty)}}}}
	} else {
		filter["variants.size"] = size
		update = mongo.Pipeline{{{Key: "$set", Value: bson.M{
			"variants": bson.M{"$map": bson.M{
				"input": "$variants",
				"as":    "v",
				"in": bson.M{"$cond": bson.A{
					bson.M{"$eq": bson.A{"$$v.size", size}},
					bson.M{"$mergeObjects": bson.A{"$$v", bson.M{"stock": clampedSubtract("$$v.stock", qty)}}},
					"$$v",
				}},
			}},
		}}}}
	}

	var before productDoc
	err := s.products.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if size != "" {
			if _, getErr := s.GetProduct(ctx, id); getErr == nil {
				return adj, domain.ErrVariantNotFound
			}
		}
		return adj, domain.ErrProductNotFound
	}
	if err != nil {
		return adj, domain.Internal(err, "mongostore.DecrementStock", "failed to decrement stock")
	}

	adj.Before = before.Stock
	if size != "" {
		for _, v := range before.Variants {
			if v.Size == size {
				adj.Before = v.Stock
				break
			}
		}
	}
	adj.After, adj.Shortfall = domain.ClampDecrement(adj.Before, qty)
	return adj, nil
}
