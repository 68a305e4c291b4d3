package products

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/quickshop/catalog/internal/app/domain/event"
	"github.com/quickshop/catalog/internal/app/domain/product"
	"github.com/quickshop/catalog/internal/app/storage"
	"github.com/quickshop/catalog/pkg/logger"
)

// ErrInsufficientStock is returned when a reservation exceeds the available
// stock.
var ErrInsufficientStock = errors.New("insufficient stock")

// List window defaults, matching the API's skip/limit query parameters.
const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// Cache is a read-through product cache. Implementations must tolerate
// concurrent use; a nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, id string) (product.Product, bool)
	Set(ctx context.Context, p product.Product)
	Invalidate(ctx context.Context, id string)
}

// StockReserver is an optional fast path for stock reservations, backed by
// an atomic counter (redis). The store remains the source of truth.
type StockReserver interface {
	ReserveStock(ctx context.Context, id string, quantity int) (bool, error)
	PrimeStock(ctx context.Context, id string, stock int) error
}

// Service manages product records and validation.
type Service struct {
	store    storage.ProductStore
	events   storage.EventStore
	cache    Cache
	reserver StockReserver
	log      *logger.Logger
}

// New constructs a product service. events and cache may be nil.
func New(store storage.ProductStore, events storage.EventStore, cache Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("products")
	}
	return &Service{store: store, events: events, cache: cache, log: log}
}

// AttachStockReserver enables the atomic reservation fast path.
func (s *Service) AttachStockReserver(reserver StockReserver) {
	s.reserver = reserver
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, p product.Product) (product.Product, error) {
	if err := validate(&p); err != nil {
		return product.Product{}, err
	}

	if p.SKU != "" {
		if existing, err := s.store.GetProductBySKU(ctx, p.SKU); err == nil {
			return product.Product{}, fmt.Errorf("sku %q taken by product %s: %w", p.SKU, existing.ID, storage.ErrExists)
		}
	}

	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return product.Product{}, err
	}

	s.recordEvent(ctx, event.KindProductCreated, created)
	s.cacheSet(ctx, created)
	s.primeStock(ctx, created)
	s.log.WithField("product_id", created.ID).
		WithField("name", created.Name).
		Info("product created")
	return created, nil
}

// Get returns a product by ID, consulting the cache first.
func (s *Service) Get(ctx context.Context, id string) (product.Product, error) {
	if s.cache != nil {
		if p, ok := s.cache.Get(ctx, id); ok {
			return p, nil
		}
	}

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return product.Product{}, err
	}
	s.cacheSet(ctx, p)
	return p, nil
}

// List returns a window of products. Negative skip is clamped to zero;
// non-positive limit selects the default window, and limit is capped.
func (s *Service) List(ctx context.Context, skip, limit int) ([]product.Product, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.store.ListProducts(ctx, skip, limit)
}

// Update replaces a product record.
func (s *Service) Update(ctx context.Context, p product.Product) (product.Product, error) {
	if strings.TrimSpace(p.ID) == "" {
		return product.Product{}, fmt.Errorf("product id is required")
	}
	if err := validate(&p); err != nil {
		return product.Product{}, err
	}

	if p.SKU != "" {
		if existing, err := s.store.GetProductBySKU(ctx, p.SKU); err == nil && existing.ID != p.ID {
			return product.Product{}, fmt.Errorf("sku %q taken by product %s: %w", p.SKU, existing.ID, storage.ErrExists)
		}
	}

	updated, err := s.store.UpdateProduct(ctx, p)
	if err != nil {
		return product.Product{}, err
	}

	s.recordEvent(ctx, event.KindProductUpdated, updated)
	s.cacheRefresh(ctx, updated)
	s.primeStock(ctx, updated)
	s.log.WithField("product_id", updated.ID).Info("product updated")
	return updated, nil
}

// PatchRequest carries the optional fields of a partial update. Nil fields
// are left untouched.
type PatchRequest struct {
	SKU         *string
	Name        *string
	Description *string
	Price       *float64
	Tax         *float64
	Stock       *int
	Tags        *[]string
}

// Patch applies a partial update to an existing product.
func (s *Service) Patch(ctx context.Context, id string, req PatchRequest) (product.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return product.Product{}, err
	}

	if req.SKU != nil {
		p.SKU = *req.SKU
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Tax != nil {
		tax := *req.Tax
		p.Tax = &tax
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.Tags != nil {
		p.Tags = *req.Tags
	}

	return s.Update(ctx, p)
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	if s.events != nil {
		_, err := s.events.AppendEvent(ctx, event.Event{
			Kind:    event.KindProductDeleted,
			Payload: map[string]string{"product_id": id},
		})
		if err != nil {
			s.log.WithError(err).Warn("record product.deleted event")
		}
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	s.log.WithField("product_id", id).Info("product deleted")
	return nil
}

// Quote describes the priced outcome of a quantity request.
type Quote struct {
	ProductID        string  `json:"product_id"`
	Quantity         int     `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
	UnitPriceWithTax float64 `json:"unit_price_with_tax"`
	Total            float64 `json:"total"`
}

// Quote computes the tax-inclusive price for a quantity of a product.
func (s *Service) Quote(ctx context.Context, id string, quantity int) (Quote, error) {
	if quantity < 1 {
		return Quote{}, fmt.Errorf("quantity must be at least 1")
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	withTax := p.PriceWithTax()
	return Quote{
		ProductID:        p.ID,
		Quantity:         quantity,
		UnitPrice:        p.Price,
		UnitPriceWithTax: withTax,
		Total:            withTax * float64(quantity),
	}, nil
}

// Reserve decrements stock for a purchase-like flow. It fails with
// ErrInsufficientStock when the requested quantity exceeds availability.
func (s *Service) Reserve(ctx context.Context, id string, quantity int) (product.Product, error) {
	if quantity < 1 {
		return product.Product{}, fmt.Errorf("quantity must be at least 1")
	}

	reserved := false
	if s.reserver != nil {
		ok, err := s.reserver.ReserveStock(ctx, id, quantity)
		if err != nil {
			s.log.WithError(err).WithField("product_id", id).Warn("stock reserver unavailable, falling back to store")
		} else if !ok {
			return product.Product{}, fmt.Errorf("product %s: requested %d: %w", id, quantity, ErrInsufficientStock)
		} else {
			reserved = true
		}
	}

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return product.Product{}, err
	}
	if p.Stock < quantity {
		// Counter and store disagree. Resync the counter to the store's
		// view so the drift does not compound.
		if reserved {
			s.primeStock(ctx, p)
		}
		return product.Product{}, fmt.Errorf("product %s has %d in stock, requested %d: %w", id, p.Stock, quantity, ErrInsufficientStock)
	}

	p.Stock -= quantity
	updated, err := s.store.UpdateProduct(ctx, p)
	if err != nil {
		if s.reserver != nil {
			if perr := s.reserver.PrimeStock(ctx, id, p.Stock+quantity); perr != nil {
				s.log.WithError(perr).WithField("product_id", id).Warn("resync reserved stock")
			}
		}
		return product.Product{}, err
	}

	if s.events != nil {
		_, err := s.events.AppendEvent(ctx, event.Event{
			Kind: event.KindProductReserved,
			Payload: map[string]string{
				"product_id": updated.ID,
				"quantity":   strconv.Itoa(quantity),
				"remaining":  strconv.Itoa(updated.Stock),
			},
		})
		if err != nil {
			s.log.WithError(err).Warn("record product.reserved event")
		}
	}
	s.cacheRefresh(ctx, updated)
	s.primeStock(ctx, updated)
	s.log.WithField("product_id", updated.ID).
		WithField("quantity", quantity).
		WithField("remaining", updated.Stock).
		Info("stock reserved")
	return updated, nil
}

func (s *Service) recordEvent(ctx context.Context, kind string, p product.Product) {
	if s.events == nil {
		return
	}
	_, err := s.events.AppendEvent(ctx, event.Event{
		Kind: kind,
		Payload: map[string]string{
			"product_id": p.ID,
			"name":       p.Name,
		},
	})
	if err != nil {
		s.log.WithError(err).WithField("kind", kind).Warn("record product event")
	}
}

func (s *Service) primeStock(ctx context.Context, p product.Product) {
	if s.reserver == nil {
		return
	}
	if err := s.reserver.PrimeStock(ctx, p.ID, p.Stock); err != nil {
		s.log.WithError(err).WithField("product_id", p.ID).Warn("prime stock counter")
	}
}

func (s *Service) cacheSet(ctx context.Context, p product.Product) {
	if s.cache != nil {
		s.cache.Set(ctx, p)
	}
}

func (s *Service) cacheRefresh(ctx context.Context, p product.Product) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, p.ID)
		s.cache.Set(ctx, p)
	}
}

func validate(p *product.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.SKU = strings.TrimSpace(p.SKU)
	p.Description = strings.TrimSpace(p.Description)
	p.Tags = normalizeTags(p.Tags)

	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Price <= 0 {
		return fmt.Errorf("price must be greater than zero")
	}
	if p.Tax != nil && *p.Tax < 0 {
		return fmt.Errorf("tax must not be negative")
	}
	if p.Stock < 0 {
		return fmt.Errorf("stock must not be negative")
	}
	return nil
}

// normalizeTags trims entries, drops empties, and removes case-insensitive
// duplicates while preserving order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
