// Command storectl performs catalog and account maintenance against the
// configured store.
//
// Usage:
//
//	storectl seed [-file data/products.json] [-stock 100]
//	storectl create-admin -email admin@example.com -password secret
//	storectl inventory
//	storectl set-stock -id 3 [-size 2kg] -stock 0
//	storectl variant-stock [-stock 100]
//	storectl reprice [-percent 15]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dukerupert/goodboy/internal"
	"github.com/dukerupert/goodboy/internal/auth"
	"github.com/dukerupert/goodboy/internal/cache"
	"github.com/dukerupert/goodboy/internal/service"
	"github.com/dukerupert/goodboy/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const usage = `usage: storectl <command> [flags]

commands:
  seed           load products from a JSON file
  create-admin   create or promote an admin account
  inventory      print products with price and stock
  set-stock      set stock for one product or size
  variant-stock  set stock for every size of every product
  reprice        raise or lower every price by a percentage
`

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger := internal.NewLogger(os.Stderr, cfg.Env, cfg.LogLevel)

	store, closeStore, err := internal.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var catalogCache cache.Catalog
	if cfg.Redis.URL != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, cached catalog may be stale until TTL")
		} else {
			defer rdb.Close()
			catalogCache = cache.NewRedisCatalog(rdb, cfg.Redis.CatalogTTL)
		}
	}

	metrics := telemetry.NewBusinessMetrics(prometheus.NewRegistry())
	c := &cli{
		products: store,
		catalog:  service.NewCatalogService(store, catalogCache, metrics),
		cache:    catalogCache,
		users: service.NewUserService(store,
			auth.NewHasher(auth.DefaultCost),
			auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
			metrics,
		),
		out: stdout,
	}
	return c.dispatch(ctx, args[0], args[1:])
}

func (c *cli) dispatch(ctx context.Context, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)

	switch command {
	case "seed":
		file := fs.String("file", "data/products.json", "products JSON file")
		stock := fs.Int("stock", 100, "stock for every product and size; negative keeps the file's values")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.seed(ctx, *file, *stock)

	case "create-admin":
		email := fs.String("email", "", "admin email")
		password := fs.String("password", "", "admin password")
		first := fs.String("first-name", "Store", "first name")
		last := fs.String("last-name", "Admin", "last name")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.createAdmin(ctx, service.RegisterRequest{
			FirstName: *first,
			LastName:  *last,
			Email:     *email,
			Password:  *password,
		})

	case "inventory":
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.inventory(ctx)

	case "set-stock":
		id := fs.Int("id", 0, "product id")
		size := fs.String("size", "", "size label for products sold in sizes")
		stock := fs.Int("stock", 0, "new stock level")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.setStock(ctx, *id, *size, *stock)

	case "variant-stock":
		stock := fs.Int("stock", 100, "stock for every size")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.variantStock(ctx, *stock)

	case "reprice":
		percent := fs.Float64("percent", 15, "percentage change, negative to lower prices")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.reprice(ctx, decimal.NewFromFloat(*percent))
	}

	return fmt.Errorf("unknown command %q\n\n%s", command, usage)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
