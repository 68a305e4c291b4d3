package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/quickshop/catalog/internal/app/domain/event"
	"github.com/quickshop/catalog/internal/app/domain/product"
	"github.com/quickshop/catalog/internal/app/domain/upload"
	"github.com/quickshop/catalog/internal/app/domain/user"
	"github.com/quickshop/catalog/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu            sync.RWMutex
	nextID        int64
	products      map[string]product.Product
	productsBySKU map[string]string
	productOrder  []string
	users         map[string]user.User
	usersByEmail  map[string]string
	uploads       map[string]upload.Upload
	uploadOrder   []string
	events        []event.Event
	eventIndex    map[string]int
}

var _ storage.ProductStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.UploadStore = (*Store)(nil)
var _ storage.EventStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:        1,
		products:      make(map[string]product.Product),
		productsBySKU: make(map[string]string),
		users:         make(map[string]user.User),
		usersByEmail:  make(map[string]string),
		uploads:       make(map[string]upload.Upload),
		eventIndex:    make(map[string]int),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// ProductStore implementation -------------------------------------------------

func (s *Store) CreateProduct(_ context.Context, p product.Product) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.products[p.ID]; exists {
		return product.Product{}, fmt.Errorf("product %s: %w", p.ID, storage.ErrExists)
	}

	skuKey := strings.ToLower(strings.TrimSpace(p.SKU))
	if skuKey != "" {
		if existing, exists := s.productsBySKU[skuKey]; exists {
			return product.Product{}, fmt.Errorf("sku %s taken by product %s: %w", p.SKU, existing, storage.ErrExists)
		}
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Tags = cloneTags(p.Tags)

	s.products[p.ID] = p
	s.productOrder = append(s.productOrder, p.ID)
	if skuKey != "" {
		s.productsBySKU[skuKey] = p.ID
	}
	return cloneProduct(p), nil
}

func (s *Store) UpdateProduct(_ context.Context, p product.Product) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.products[p.ID]
	if !ok {
		return product.Product{}, fmt.Errorf("product %s: %w", p.ID, storage.ErrNotFound)
	}

	oldKey := strings.ToLower(strings.TrimSpace(original.SKU))
	newKey := strings.ToLower(strings.TrimSpace(p.SKU))
	if newKey != "" {
		if existing, exists := s.productsBySKU[newKey]; exists && existing != p.ID {
			return product.Product{}, fmt.Errorf("sku %s taken by product %s: %w", p.SKU, existing, storage.ErrExists)
		}
	}

	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	p.Tags = cloneTags(p.Tags)

	s.products[p.ID] = p
	if oldKey != "" && oldKey != newKey {
		delete(s.productsBySKU, oldKey)
	}
	if newKey != "" {
		s.productsBySKU[newKey] = p.ID
	}
	return cloneProduct(p), nil
}

func (s *Store) GetProduct(_ context.Context, id string) (product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return product.Product{}, fmt.Errorf("product %s: %w", id, storage.ErrNotFound)
	}
	return cloneProduct(p), nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.productsBySKU[strings.ToLower(strings.TrimSpace(sku))]; ok {
		return cloneProduct(s.products[id]), nil
	}
	return product.Product{}, fmt.Errorf("product sku %s: %w", sku, storage.ErrNotFound)
}

func (s *Store) ListProducts(_ context.Context, skip, limit int) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if skip < 0 {
		skip = 0
	}
	if skip >= len(s.productOrder) {
		return []product.Product{}, nil
	}

	end := len(s.productOrder)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}

	result := make([]product.Product, 0, end-skip)
	for _, id := range s.productOrder[skip:end] {
		result = append(result, cloneProduct(s.products[id]))
	}
	return result, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, storage.ErrNotFound)
	}
	delete(s.products, id)
	if key := strings.ToLower(strings.TrimSpace(p.SKU)); key != "" {
		delete(s.productsBySKU, key)
	}
	for i, existing := range s.productOrder {
		if existing == id {
			s.productOrder = append(s.productOrder[:i], s.productOrder[i+1:]...)
			break
		}
	}
	return nil
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrExists)
	}

	emailKey := strings.ToLower(strings.TrimSpace(u.Email))
	if emailKey == "" {
		return user.User{}, fmt.Errorf("user email is required")
	}
	if existing, exists := s.usersByEmail[emailKey]; exists {
		return user.User{}, fmt.Errorf("email %s taken by user %s: %w", u.Email, existing, storage.ErrExists)
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.usersByEmail[emailKey] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]; ok {
		return s.users[id], nil
	}
	return user.User{}, fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
}

// UploadStore implementation --------------------------------------------------

func (s *Store) CreateUpload(_ context.Context, up upload.Upload) (upload.Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if up.ID == "" {
		up.ID = s.nextIDLocked()
	} else if _, exists := s.uploads[up.ID]; exists {
		return upload.Upload{}, fmt.Errorf("upload %s: %w", up.ID, storage.ErrExists)
	}

	up.CreatedAt = time.Now().UTC()

	s.uploads[up.ID] = up
	s.uploadOrder = append(s.uploadOrder, up.ID)
	return up, nil
}

func (s *Store) GetUpload(_ context.Context, id string) (upload.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	up, ok := s.uploads[id]
	if !ok {
		return upload.Upload{}, fmt.Errorf("upload %s: %w", id, storage.ErrNotFound)
	}
	return up, nil
}

func (s *Store) ListUploads(_ context.Context, ownerID string) ([]upload.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]upload.Upload, 0)
	for _, id := range s.uploadOrder {
		up := s.uploads[id]
		if ownerID == "" || up.OwnerID == ownerID {
			result = append(result, up)
		}
	}
	return result, nil
}

// EventStore implementation ---------------------------------------------------

func (s *Store) AppendEvent(_ context.Context, ev event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = s.nextIDLocked()
	} else if _, exists := s.eventIndex[ev.ID]; exists {
		return event.Event{}, fmt.Errorf("event %s: %w", ev.ID, storage.ErrExists)
	}

	ev.CreatedAt = time.Now().UTC()
	ev.DispatchedAt = time.Time{}
	ev.Payload = cloneMap(ev.Payload)

	s.eventIndex[ev.ID] = len(s.events)
	s.events = append(s.events, ev)
	return cloneEvent(ev), nil
}

func (s *Store) ListPendingEvents(_ context.Context, limit int) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]event.Event, 0)
	for _, ev := range s.events {
		if !ev.Pending() {
			continue
		}
		result = append(result, cloneEvent(ev))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) MarkEventDispatched(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.eventIndex[id]
	if !ok {
		return fmt.Errorf("event %s: %w", id, storage.ErrNotFound)
	}
	if at.IsZero() {
		at = time.Now()
	}
	s.events[idx].DispatchedAt = at.UTC()
	return nil
}

func (s *Store) PurgeDispatchedEvents(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	purged := 0
	for _, ev := range s.events {
		if !ev.Pending() && ev.DispatchedAt.Before(olderThan) {
			purged++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept

	s.eventIndex = make(map[string]int, len(s.events))
	for i, ev := range s.events {
		s.eventIndex[ev.ID] = i
	}
	return purged, nil
}

// Helpers --------------------------------------------------------------------

func cloneMap(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	return append([]string(nil), tags...)
}

func cloneProduct(p product.Product) product.Product {
	p.Tags = cloneTags(p.Tags)
	if p.Tax != nil {
		tax := *p.Tax
		p.Tax = &tax
	}
	return p
}

func cloneEvent(ev event.Event) event.Event {
	ev.Payload = cloneMap(ev.Payload)
	return ev
}
