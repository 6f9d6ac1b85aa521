package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dukerupert/goodboy/internal/cache"
	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/service"
	"github.com/shopspring/decimal"
)

type cli struct {
	products domain.ProductStore
	catalog  service.CatalogService
	cache    cache.Catalog
	users    service.UserService
	out      io.Writer
}

var hundred = decimal.NewFromInt(100)

// seed upserts every product in file. Products already in the store but
// absent from the file are left alone.
func (c *cli) seed(ctx context.Context, file string, stock int) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return fmt.Errorf("failed to parse %s: %w", file, err)
	}

	ids := make([]int, 0, len(products))
	for i := range products {
		p := &products[i]
		if stock >= 0 {
			p.Stock = stock
			for j := range p.Variants {
				p.Variants[j].Stock = stock
			}
		}
		if err := c.products.UpsertProduct(ctx, p); err != nil {
			return fmt.Errorf("product %d: %w", p.ID, err)
		}
		ids = append(ids, p.ID)
	}

	if c.cache != nil {
		if err := c.cache.Invalidate(ctx, ids...); err != nil {
			fmt.Fprintf(c.out, "warning: failed to invalidate catalog cache: %v\n", err)
		}
	}

	fmt.Fprintf(c.out, "Imported %d products.\n", len(products))
	return nil
}

func (c *cli) createAdmin(ctx context.Context, req service.RegisterRequest) error {
	user, err := c.users.EnsureAdmin(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create admin: %s", domain.ErrorMessage(err))
	}
	fmt.Fprintf(c.out, "Admin ready: %s (%s)\n", user.Email, user.ID)
	return nil
}

func (c *cli) inventory(ctx context.Context) error {
	products, err := c.products.ListProducts(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tPRICE\tSTOCK")
	for _, p := range products {
		if len(p.Variants) == 0 {
			fmt.Fprintf(tw, "%d\t%s\t-\t%s\t%d\n", p.ID, p.Name, p.Price.StringFixed(2), p.Stock)
			continue
		}
		for _, v := range p.Variants {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", p.ID, p.Name, v.Size, v.Price.StringFixed(2), v.Stock)
		}
	}
	return tw.Flush()
}

func (c *cli) setStock(ctx context.Context, id int, size string, stock int) error {
	if id <= 0 {
		return fmt.Errorf("-id is required")
	}

	var update domain.ProductUpdate
	if size == "" {
		update.Stock = &stock
	} else {
		p, err := c.products.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if _, ok := p.Variant(size); !ok {
			return domain.ErrVariantNotFound
		}
		update.Variants = withVariantStock(p.Variants, size, stock)
	}

	p, err := c.catalog.UpdateProduct(ctx, id, update)
	if err != nil {
		return fmt.Errorf("product %d: %s", id, domain.ErrorMessage(err))
	}
	fmt.Fprintf(c.out, "Set stock to %d for: %s\n", stock, p.DisplayName(size))
	return nil
}

func (c *cli) variantStock(ctx context.Context, stock int) error {
	products, err := c.products.ListProducts(ctx)
	if err != nil {
		return err
	}

	updated := 0
	for _, p := range products {
		if len(p.Variants) == 0 {
			continue
		}
		variants := withVariantStock(p.Variants, "", stock)
		if _, err := c.catalog.UpdateProduct(ctx, p.ID, domain.ProductUpdate{Variants: variants}); err != nil {
			return fmt.Errorf("product %d: %s", p.ID, domain.ErrorMessage(err))
		}
		updated++
	}

	fmt.Fprintf(c.out, "Updated variant stock for %d products.\n", updated)
	return nil
}

// reprice scales every base and size price by (100+percent)/100, rounded to
// cents.
func (c *cli) reprice(ctx context.Context, percent decimal.Decimal) error {
	products, err := c.products.ListProducts(ctx)
	if err != nil {
		return err
	}

	factor := hundred.Add(percent).Div(hundred)
	if factor.IsNegative() {
		return fmt.Errorf("percent must be greater than -100")
	}

	for _, p := range products {
		price := scalePrice(p.Price, factor)
		update := domain.ProductUpdate{Price: &price}
		if len(p.Variants) > 0 {
			update.Variants = make([]domain.Variant, len(p.Variants))
			for i, v := range p.Variants {
				v.Price = scalePrice(v.Price, factor)
				update.Variants[i] = v
			}
		}
		if _, err := c.catalog.UpdateProduct(ctx, p.ID, update); err != nil {
			return fmt.Errorf("product %d: %s", p.ID, domain.ErrorMessage(err))
		}
	}

	fmt.Fprintf(c.out, "Repriced %d products by %s%%.\n", len(products), percent.String())
	return nil
}

func scalePrice(price, factor decimal.Decimal) decimal.Decimal {
	return price.Mul(factor).Round(2)
}

// withVariantStock returns a copy of variants with stock set on the named
// size, or on every size when size is empty.
func withVariantStock(variants []domain.Variant, size string, stock int) []domain.Variant {
	out := make([]domain.Variant, len(variants))
	for i, v := range variants {
		if size == "" || strings.EqualFold(v.Size, size) {
			v.Stock = stock
		}
		out[i] = v
	}
	return out
}
