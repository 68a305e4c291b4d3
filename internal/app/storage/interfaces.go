package storage

import (
	"context"
	"errors"
	"time"

	"github.com/quickshop/catalog/internal/app/domain/event"
	"github.com/quickshop/catalog/internal/app/domain/product"
	"github.com/quickshop/catalog/internal/app/domain/upload"
	"github.com/quickshop/catalog/internal/app/domain/user"
)

// Sentinel errors shared by all store implementations so callers can map
// them to HTTP statuses without knowing the backend.
var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

// ProductStore persists product records.
type ProductStore interface {
	CreateProduct(ctx context.Context, p product.Product) (product.Product, error)
	UpdateProduct(ctx context.Context, p product.Product) (product.Product, error)
	GetProduct(ctx context.Context, id string) (product.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (product.Product, error)
	ListProducts(ctx context.Context, skip, limit int) ([]product.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
}

// UploadStore persists upload metadata.
type UploadStore interface {
	CreateUpload(ctx context.Context, up upload.Upload) (upload.Upload, error)
	GetUpload(ctx context.Context, id string) (upload.Upload, error)
	ListUploads(ctx context.Context, ownerID string) ([]upload.Upload, error)
}

// EventStore persists outbox events.
type EventStore interface {
	AppendEvent(ctx context.Context, ev event.Event) (event.Event, error)
	ListPendingEvents(ctx context.Context, limit int) ([]event.Event, error)
	MarkEventDispatched(ctx context.Context, id string, at time.Time) error
	PurgeDispatchedEvents(ctx context.Context, olderThan time.Time) (int, error)
}
