// Package filestore keeps products, users, orders and payment events in JSON
// files under a data directory. Every operation re-reads the file so edits
// made by storectl are picked up by a running server.
package filestore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/natefinch/atomic"
)

// File names inside the data directory.
const (
	ProductsFile = "products.json"
	UsersFile    = "users.json"
	OrdersFile   = "orders.json"
	EventsFile   = "payment_events.json"
)

// Store implements the domain store contracts on top of JSON files.
type Store struct {
	// mu serializes read-modify-write cycles within this process.
	mu sync.Mutex

	products collection[domain.Product]
	users    collection[userRecord]
	orders   collection[domain.Order]
	events   collection[domain.PaymentEvent]
}

var (
	_ domain.ProductStore = (*Store)(nil)
	_ domain.UserStore    = (*Store)(nil)
	_ domain.OrderStore   = (*Store)(nil)
	_ domain.EventLedger  = (*Store)(nil)
)

// Open prepares a store rooted at dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &Store{
		products: collection[domain.Product]{path: filepath.Join(dir, ProductsFile)},
		users:    collection[userRecord]{path: filepath.Join(dir, UsersFile)},
		orders:   collection[domain.Order]{path: filepath.Join(dir, OrdersFile)},
		events:   collection[domain.PaymentEvent]{path: filepath.Join(dir, EventsFile)},
	}, nil
}

// collection is one JSON array file.
type collection[T any] struct {
	path string
}

func (c collection[T]) load() ([]T, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(c.path), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(c.path), err)
	}
	return items, nil
}

func (c collection[T]) save(items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(c.path), err)
	}
	if err := atomic.WriteFile(c.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(c.path), err)
	}
	return nil
}
