package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quickshop/catalog/internal/app/domain/event"
	"github.com/quickshop/catalog/internal/app/domain/product"
	"github.com/quickshop/catalog/internal/app/domain/upload"
	"github.com/quickshop/catalog/internal/app/domain/user"
	"github.com/quickshop/catalog/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.ProductStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.UploadStore = (*Store)(nil)
var _ storage.EventStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the catalog tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// --- ProductStore -----------------------------------------------------------

func (s *Store) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	tagsJSON, err := json.Marshal(p.Tags)
	if err != nil {
		return product.Product{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO catalog_products (id, sku, name, description, price, tax, stock, tags, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, p.SKU, p.Name, p.Description, p.Price, p.Tax, p.Stock, tagsJSON, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return product.Product{}, fmt.Errorf("product %s: %w", p.ID, storage.ErrExists)
		}
		return product.Product{}, err
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	existing, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		return product.Product{}, err
	}

	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	tagsJSON, err := json.Marshal(p.Tags)
	if err != nil {
		return product.Product{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE catalog_products
		SET sku = NULLIF($2, ''), name = $3, description = $4, price = $5, tax = $6, stock = $7, tags = $8, updated_at = $9
		WHERE id = $1
	`, p.ID, p.SKU, p.Name, p.Description, p.Price, p.Tax, p.Stock, tagsJSON, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return product.Product{}, fmt.Errorf("sku %s: %w", p.SKU, storage.ErrExists)
		}
		return product.Product{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return product.Product{}, fmt.Errorf("product %s: %w", p.ID, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (product.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(sku, ''), name, description, price, tax, stock, tags, created_at, updated_at
		FROM catalog_products
		WHERE id = $1
	`, id)
	return scanProduct(row, id)
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (product.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(sku, ''), name, description, price, tax, stock, tags, created_at, updated_at
		FROM catalog_products
		WHERE lower(sku) = lower($1)
	`, sku)
	return scanProduct(row, sku)
}

func (s *Store) ListProducts(ctx context.Context, skip, limit int) ([]product.Product, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(sku, ''), name, description, price, tax, stock, tags, created_at, updated_at
		FROM catalog_products
		ORDER BY created_at, id
		OFFSET $1 LIMIT $2
	`, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]product.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows, "")
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM catalog_products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("product %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner, ref string) (product.Product, error) {
	var (
		p       product.Product
		tax     sql.NullFloat64
		tagsRaw []byte
	)
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price, &tax, &p.Stock, &tagsRaw, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return product.Product{}, fmt.Errorf("product %s: %w", ref, storage.ErrNotFound)
	}
	if err != nil {
		return product.Product{}, err
	}
	if tax.Valid {
		value := tax.Float64
		p.Tax = &value
	}
	if len(tagsRaw) > 0 {
		_ = json.Unmarshal(tagsRaw, &p.Tags)
	}
	return p, nil
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_users (id, email, password_hash, role, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, $5, $6)
	`, u.ID, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, fmt.Errorf("email %s: %w", u.Email, storage.ErrExists)
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at, updated_at
		FROM catalog_users
		WHERE id = $1
	`, id)
	return scanUser(row, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at, updated_at
		FROM catalog_users
		WHERE email = lower($1)
	`, email)
	return scanUser(row, email)
}

func scanUser(row rowScanner, ref string) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("user %s: %w", ref, storage.ErrNotFound)
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

// --- UploadStore ------------------------------------------------------------

func (s *Store) CreateUpload(ctx context.Context, up upload.Upload) (upload.Upload, error) {
	if up.ID == "" {
		up.ID = uuid.NewString()
	}
	up.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_uploads (id, owner_id, filename, stored_path, size, checksum, content_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, up.ID, up.OwnerID, up.Filename, up.StoredPath, up.Size, up.Checksum, up.ContentType, up.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return upload.Upload{}, fmt.Errorf("upload %s: %w", up.ID, storage.ErrExists)
		}
		return upload.Upload{}, err
	}
	return up, nil
}

func (s *Store) GetUpload(ctx context.Context, id string) (upload.Upload, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, filename, stored_path, size, checksum, content_type, created_at
		FROM catalog_uploads
		WHERE id = $1
	`, id)

	var up upload.Upload
	err := row.Scan(&up.ID, &up.OwnerID, &up.Filename, &up.StoredPath, &up.Size, &up.Checksum, &up.ContentType, &up.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return upload.Upload{}, fmt.Errorf("upload %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return upload.Upload{}, err
	}
	return up, nil
}

func (s *Store) ListUploads(ctx context.Context, ownerID string) ([]upload.Upload, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, filename, stored_path, size, checksum, content_type, created_at
		FROM catalog_uploads
		WHERE $1 = '' OR owner_id = $1
		ORDER BY created_at, id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]upload.Upload, 0)
	for rows.Next() {
		var up upload.Upload
		if err := rows.Scan(&up.ID, &up.OwnerID, &up.Filename, &up.StoredPath, &up.Size, &up.Checksum, &up.ContentType, &up.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, up)
	}
	return result, rows.Err()
}

// --- EventStore -------------------------------------------------------------

func (s *Store) AppendEvent(ctx context.Context, ev event.Event) (event.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.CreatedAt = time.Now().UTC()
	ev.DispatchedAt = time.Time{}

	payloadJSON, err := json.Marshal(ev.Payload)
	if err != nil {
		return event.Event{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO catalog_events (id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, ev.ID, ev.Kind, payloadJSON, ev.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return event.Event{}, fmt.Errorf("event %s: %w", ev.ID, storage.ErrExists)
		}
		return event.Event{}, err
	}
	return ev, nil
}

func (s *Store) ListPendingEvents(ctx context.Context, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, payload, created_at
		FROM catalog_events
		WHERE dispatched_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]event.Event, 0)
	for rows.Next() {
		var (
			ev         event.Event
			payloadRaw []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Kind, &payloadRaw, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if len(payloadRaw) > 0 {
			_ = json.Unmarshal(payloadRaw, &ev.Payload)
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

func (s *Store) MarkEventDispatched(ctx context.Context, id string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE catalog_events SET dispatched_at = $2 WHERE id = $1
	`, id, at.UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("event %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) PurgeDispatchedEvents(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM catalog_events
		WHERE dispatched_at IS NOT NULL AND dispatched_at < $1
	`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// error (class 23505).
func isUniqueViolation(err error) bool {
	type coder interface{ SQLState() string }
	var c coder
	if errors.As(err, &c) {
		return c.SQLState() == "23505"
	}
	// lib/pq exposes the code through its Error type as well.
	type legacy interface{ Get(byte) string }
	var l legacy
	if errors.As(err, &l) {
		return l.Get('C') == "23505"
	}
	return false
}
