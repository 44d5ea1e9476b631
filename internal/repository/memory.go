package repository

import (
	"cmp"
	"context"
	"encoding/hex"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/store-catalog/internal/model"
)

var _ Repository = (*MemoryRepository)(nil)

// IDGenerator returns a new unique identifier.
type IDGenerator func() string

// NewHexID returns a random UUIDv4 encoded as 32 lowercase hex characters.
func NewHexID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// Option configures a MemoryRepository.
type Option func(*MemoryRepository)

// WithDeletePolicy sets the store delete policy.
func WithDeletePolicy(p DeletePolicy) Option {
	return func(r *MemoryRepository) {
		r.policy = p
	}
}

// WithIDGenerator replaces the identifier generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(r *MemoryRepository) {
		r.newID = gen
	}
}

// MemoryRepository implements Repository with in-memory maps.
// A single lock guards both maps so every check-then-write sequence
// runs atomically.
type MemoryRepository struct {
	mu     sync.RWMutex
	stores map[string]model.Store
	items  map[string]model.Item
	policy DeletePolicy
	newID  IDGenerator
}

// NewMemoryRepository creates a new MemoryRepository instance.
func NewMemoryRepository(opts ...Option) *MemoryRepository {
	r := &MemoryRepository{
		stores: make(map[string]model.Store),
		items:  make(map[string]model.Item),
		policy: PolicyOrphan,
		newID:  NewHexID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the configured store delete policy.
func (r *MemoryRepository) Policy() DeletePolicy {
	return r.policy
}

// ListStores returns all stores ordered by name, then ID.
func (r *MemoryRepository) ListStores(ctx context.Context) ([]model.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stores := make([]model.Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s.Clone())
	}

	slices.SortFunc(stores, func(a, b model.Store) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})

	return stores, nil
}

// GetStore retrieves a store by its ID.
func (r *MemoryRepository) GetStore(ctx context.Context, id string) (*model.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get store: %w", err)
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.stores[id]
	if !exists {
		return nil, ErrStoreNotFound
	}

	s = s.Clone()
	return &s, nil
}

// CreateStore adds a store with a generated ID.
func (r *MemoryRepository) CreateStore(ctx context.Context, store *model.Store) (*model.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	if store == nil {
		return nil, fmt.Errorf("create store: store cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storeNameTaken(store.Name, "") {
		return nil, ErrStoreExists
	}

	created := store.Clone()
	created.ID = r.newID()
	r.stores[created.ID] = created

	out := created.Clone()
	return &out, nil
}

// UpdateStore merges patch into an existing store. The new name may equal
// the store's current name but no other store's name.
func (r *MemoryRepository) UpdateStore(ctx context.Context, id string, patch *model.Store) (*model.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("update store: %w", err)
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	if patch == nil {
		return nil, fmt.Errorf("update store: patch cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.stores[id]
	if !exists {
		return nil, ErrStoreNotFound
	}

	if r.storeNameTaken(patch.Name, id) {
		return nil, ErrStoreExists
	}

	updated := existing.Clone()
	updated.Merge(patch)
	r.stores[id] = updated

	out := updated.Clone()
	return &out, nil
}

// DeleteStore removes a store. Under PolicyCascade the IDs of removed
// items are returned.
func (r *MemoryRepository) DeleteStore(ctx context.Context, id string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("delete store: %w", err)
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[id]; !exists {
		return nil, ErrStoreNotFound
	}

	var removed []string
	switch r.policy {
	case PolicyRestrict:
		for _, item := range r.items {
			if item.StoreID == id {
				return nil, ErrStoreHasItems
			}
		}
	case PolicyCascade:
		for itemID, item := range r.items {
			if item.StoreID == id {
				delete(r.items, itemID)
				removed = append(removed, itemID)
			}
		}
		slices.Sort(removed)
	}

	delete(r.stores, id)

	return removed, nil
}

// ListItems returns all items ordered by name, then ID.
func (r *MemoryRepository) ListItems(ctx context.Context) ([]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]model.Item, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, item.Clone())
	}

	slices.SortFunc(items, func(a, b model.Item) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})

	return items, nil
}

// GetItem retrieves an item by its ID.
func (r *MemoryRepository) GetItem(ctx context.Context, id string) (*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[id]
	if !exists {
		return nil, ErrItemNotFound
	}

	item = item.Clone()
	return &item, nil
}

// CreateItem adds an item with a generated ID. A duplicate name within the
// same store is rejected before the store reference is checked.
func (r *MemoryRepository) CreateItem(ctx context.Context, item *model.Item) (*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	if item == nil {
		return nil, fmt.Errorf("create item: item cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.Name == item.Name && existing.StoreID == item.StoreID {
			return nil, ErrItemExists
		}
	}

	if _, exists := r.stores[item.StoreID]; !exists {
		return nil, ErrStoreNotFound
	}

	created := item.Clone()
	created.ID = r.newID()
	r.items[created.ID] = created

	out := created.Clone()
	return &out, nil
}

// UpdateItem merges patch into an existing item. The name must not be used
// by any other item in any store. A new store_id is taken as is.
func (r *MemoryRepository) UpdateItem(ctx context.Context, id string, patch *model.ItemPatch) (*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	if patch == nil {
		return nil, fmt.Errorf("update item: patch cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.items[id]
	if !exists {
		return nil, ErrItemNotFound
	}

	for otherID, other := range r.items {
		if otherID != id && other.Name == patch.Name {
			return nil, ErrItemExists
		}
	}

	updated := existing.Clone()
	updated.Apply(patch)
	r.items[id] = updated

	out := updated.Clone()
	return &out, nil
}

// DeleteItem removes an item by its ID.
func (r *MemoryRepository) DeleteItem(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	if id == "" {
		return ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; !exists {
		return ErrItemNotFound
	}

	delete(r.items, id)

	return nil
}

// Stats returns the number of stores and items.
func (r *MemoryRepository) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{Stores: len(r.stores), Items: len(r.items)}, nil
}

// storeNameTaken reports whether a store other than exceptID uses name.
// Callers must hold the lock.
func (r *MemoryRepository) storeNameTaken(name, exceptID string) bool {
	for id, s := range r.stores {
		if id != exceptID && s.Name == name {
			return true
		}
	}
	return false
}
