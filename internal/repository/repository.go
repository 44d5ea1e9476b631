// Package repository provides catalog storage interfaces and implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/vyrodovalexey/store-catalog/internal/model"
)

// Repository errors.
var (
	ErrStoreNotFound = errors.New("store not found")
	ErrItemNotFound  = errors.New("item not found")
	ErrStoreExists   = errors.New("store already exists")
	ErrItemExists    = errors.New("item already exists")
	ErrStoreHasItems = errors.New("store still has items")
	ErrInvalidID     = errors.New("invalid ID")
)

// DeletePolicy decides what happens to items when their store is deleted.
type DeletePolicy string

// Store delete policies.
const (
	// PolicyOrphan leaves items pointing at the deleted store.
	PolicyOrphan DeletePolicy = "orphan"
	// PolicyCascade deletes the store's items along with it.
	PolicyCascade DeletePolicy = "cascade"
	// PolicyRestrict refuses to delete a store that still has items.
	PolicyRestrict DeletePolicy = "restrict"
)

// ParseDeletePolicy converts a configuration value into a DeletePolicy.
// An empty value selects PolicyOrphan.
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch p := DeletePolicy(s); p {
	case "":
		return PolicyOrphan, nil
	case PolicyOrphan, PolicyCascade, PolicyRestrict:
		return p, nil
	default:
		return "", fmt.Errorf("unknown store delete policy %q", s)
	}
}

// Stats holds collection sizes.
type Stats struct {
	Stores int
	Items  int
}

// Repository defines the catalog storage operations for stores and items.
type Repository interface {
	// ListStores returns all stores.
	ListStores(ctx context.Context) ([]model.Store, error)

	// GetStore retrieves a store by its ID.
	GetStore(ctx context.Context, id string) (*model.Store, error)

	// CreateStore adds a store with a generated ID. The name must be unused.
	CreateStore(ctx context.Context, store *model.Store) (*model.Store, error)

	// UpdateStore merges patch into the store with the given ID.
	UpdateStore(ctx context.Context, id string, patch *model.Store) (*model.Store, error)

	// DeleteStore removes a store according to the configured DeletePolicy.
	// It returns the IDs of items removed by a cascade.
	DeleteStore(ctx context.Context, id string) ([]string, error)

	// ListItems returns all items.
	ListItems(ctx context.Context) ([]model.Item, error)

	// GetItem retrieves an item by its ID.
	GetItem(ctx context.Context, id string) (*model.Item, error)

	// CreateItem adds an item with a generated ID. Its store must exist and
	// no item in that store may share its name.
	CreateItem(ctx context.Context, item *model.Item) (*model.Item, error)

	// UpdateItem merges patch into the item with the given ID.
	UpdateItem(ctx context.Context, id string, patch *model.ItemPatch) (*model.Item, error)

	// DeleteItem removes an item by its ID.
	DeleteItem(ctx context.Context, id string) error

	// Stats returns the current collection sizes.
	Stats(ctx context.Context) (Stats, error)
}
