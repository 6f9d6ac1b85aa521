package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/jackc/pgx/v5"
)

var _ domain.ProductStore = (*Store)(nil)

const productColumns = `id, name, description, category, image, price::text, stock`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Image, &price, &p.Stock); err != nil {
		return p, err
	}
	var err error
	p.Price, err = parseNumeric(price)
	return p, err
}

// loadVariants attaches variants, in position order, to the given products.
func loadVariants(ctx context.Context, q querier, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]int, len(products))
	byID := make(map[int]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		byID[p.ID] = i
	}

	rows, err := q.Query(ctx, `
		SELECT product_id, size, price::text, stock
		FROM product_variants
		WHERE product_id = ANY($1)
		ORDER BY product_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID int
			v         domain.Variant
			price     string
		)
		if err := rows.Scan(&productID, &v.Size, &price, &v.Stock); err != nil {
			return err
		}
		if v.Price, err = parseNumeric(price); err != nil {
			return err
		}
		i := byID[productID]
		products[i].Variants = append(products[i].Variants, v)
	}
	return rows.Err()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, domain.Internal(err, "product.list", "failed to list products")
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, domain.Internal(err, "product.list", "failed to scan product")
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "product.list", "failed to list products")
	}

	if err := loadVariants(ctx, s.pool, products); err != nil {
		return nil, domain.Internal(err, "product.list", "failed to load variants")
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int) (*domain.Product, error) {
	return s.getProduct(ctx, s.pool, "product.get", `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

func (s *Store) FindProductByName(ctx context.Context, name string) (*domain.Product, error) {
	return s.getProduct(ctx, s.pool, "product.find_by_name",
		`SELECT `+productColumns+` FROM products WHERE lower(name) = $1 ORDER BY id LIMIT 1`,
		strings.ToLower(strings.TrimSpace(name)))
}

func (s *Store) getProduct(ctx context.Context, q querier, op, query string, arg any) (*domain.Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, domain.Internal(err, op, "failed to get product")
	}

	products := []domain.Product{p}
	if err := loadVariants(ctx, q, products); err != nil {
		return nil, domain.Internal(err, op, "failed to load variants")
	}
	return &products[0], nil
}

func (s *Store) UpsertProduct(ctx context.Context, p *domain.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO products (id, name, description, category, image, price, stock)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				category = EXCLUDED.category,
				image = EXCLUDED.image,
				price = EXCLUDED.price,
				stock = EXCLUDED.stock`,
			p.ID, p.Name, p.Description, p.Category, p.Image, p.Price.StringFixed(2), p.Stock)
		if err != nil {
			return err
		}
		return replaceVariants(ctx, tx, p.ID, p.Variants)
	})
	if err != nil {
		return domain.Internal(err, "product.upsert", "failed to save product")
	}
	return nil
}

func replaceVariants(ctx context.Context, tx pgx.Tx, productID int, variants []domain.Variant) error {
	if _, err := tx.Exec(ctx, `DELETE FROM product_variants WHERE product_id = $1`, productID); err != nil {
		return err
	}
	if len(variants) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, v := range variants {
		batch.Queue(`
			INSERT INTO product_variants (product_id, size, position, price, stock)
			VALUES ($1, $2, $3, $4::numeric, $5)`,
			productID, v.Size, i, v.Price.StringFixed(2), v.Stock)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (s *Store) UpdateProduct(ctx context.Context, id int, u domain.ProductUpdate) (*domain.Product, error) {
	var updated *domain.Product
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		current, err := s.getProduct(ctx, tx, "product.update",
			`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		if err := u.Apply(current); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE products SET price = $2::numeric, stock = $3 WHERE id = $1`,
			id, current.Price.StringFixed(2), current.Stock); err != nil {
			return domain.Internal(err, "product.update", "failed to update product")
		}
		if u.Variants != nil {
			if err := replaceVariants(ctx, tx, id, current.Variants); err != nil {
				return domain.Internal(err, "product.update", "failed to update variants")
			}
		}
		updated = current
		return nil
	})
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) || domain.IsValidationError(err) {
			return nil, err
		}
		return nil, domain.Internal(err, "product.update", "failed to commit product update")
	}
	return updated, nil
}

// DecrementStock locks the row, records the prior quantity and writes the
// clamped result in one statement.
func (s *Store) DecrementStock(ctx context.Context, id int, size string, qty int) (domain.StockAdjustment, error) {
	adj := domain.StockAdjustment{ProductID: id, Size: size}

	var err error
	if size == "" {
		err = s.pool.QueryRow(ctx, `
			WITH prev AS (
				SELECT id, stock FROM products WHERE id = $1 FOR UPDATE
			)
			UPDATE products p
			SET stock = GREATEST(p.stock - $2, 0)
			FROM prev
			WHERE p.id = prev.id
			RETURNING prev.stock`, id, qty).Scan(&adj.Before)
	} else {
		err = s.pool.QueryRow(ctx, `
			WITH prev AS (
				SELECT product_id, size, stock FROM product_variants
				WHERE product_id = $1 AND size = $2 FOR UPDATE
			)
			UPDATE product_variants v
			SET stock = GREATEST(v.stock - $3, 0)
			FROM prev
			WHERE v.product_id = prev.product_id AND v.size = prev.size
			RETURNING prev.stock`, id, size, qty).Scan(&adj.Before)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		if size != "" {
			if _, getErr := s.GetProduct(ctx, id); getErr == nil {
				return adj, domain.ErrVariantNotFound
			}
		}
		return adj, domain.ErrProductNotFound
	}
	if err != nil {
		return adj, domain.Internal(err, "product.decrement_stock", "failed to decrement stock")
	}

	adj.After, adj.Shortfall = domain.ClampDecrement(adj.Before, qty)
	return adj, nil
}
