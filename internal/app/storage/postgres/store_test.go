package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/quickshop/catalog/internal/app/domain/event"
	"github.com/quickshop/catalog/internal/app/domain/product"
	"github.com/quickshop/catalog/internal/app/domain/user"
	"github.com/quickshop/catalog/internal/app/storage"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := New(db)
	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	sku := fmt.Sprintf("IT-%d", time.Now().UnixNano())
	created, err := store.CreateProduct(ctx, product.Product{Name: "integration", SKU: sku, Price: 9.5, Stock: 3, Tags: []string{"it"}})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	defer func() { _ = store.DeleteProduct(ctx, created.ID) }()

	if _, err := store.CreateProduct(ctx, product.Product{Name: "dup", SKU: sku, Price: 1}); !errors.Is(err, storage.ErrExists) {
		t.Fatalf("expected ErrExists for duplicate sku, got %v", err)
	}

	got, err := store.GetProduct(ctx, created.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Name != "integration" || len(got.Tags) != 1 {
		t.Fatalf("unexpected product %+v", got)
	}

	got.Stock = 2
	if _, err := store.UpdateProduct(ctx, got); err != nil {
		t.Fatalf("update product: %v", err)
	}

	email := fmt.Sprintf("it-%d@example.com", time.Now().UnixNano())
	if _, err := store.CreateUser(ctx, user.User{Email: email, PasswordHash: "hash"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.GetUserByEmail(ctx, email); err != nil {
		t.Fatalf("get user by email: %v", err)
	}

	ev, err := store.AppendEvent(ctx, event.Event{Kind: event.KindProductCreated, Payload: map[string]string{"product_id": created.ID}})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := store.MarkEventDispatched(ctx, ev.ID, time.Now()); err != nil {
		t.Fatalf("mark dispatched: %v", err)
	}
	if _, err := store.PurgeDispatchedEvents(ctx, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("purge: %v", err)
	}

	if _, err := store.GetProduct(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
