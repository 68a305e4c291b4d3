package app

import (
	"context"
	"fmt"
	"time"

	"github.com/quickshop/catalog/internal/app/services/outbox"
	"github.com/quickshop/catalog/internal/app/services/products"
	"github.com/quickshop/catalog/internal/app/services/uploads"
	"github.com/quickshop/catalog/internal/app/services/users"
	"github.com/quickshop/catalog/internal/app/storage"
	"github.com/quickshop/catalog/internal/app/storage/memory"
	"github.com/quickshop/catalog/internal/app/system"
	"github.com/quickshop/catalog/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Products storage.ProductStore
	Users    storage.UserStore
	Uploads  storage.UploadStore
	Events   storage.EventStore
}

// Options carries the tunables the services need beyond their stores.
type Options struct {
	Cache    products.Cache
	Reserver products.StockReserver

	JWTSecret string
	TokenTTL  time.Duration

	UploadDir      string
	UploadMaxBytes int64

	OutboxInterval time.Duration
	SweepSchedule  string
	EventRetention time.Duration
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Products *products.Service
	Users    *users.Service
	Uploads  *uploads.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Products == nil {
		stores.Products = mem
	}
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Uploads == nil {
		stores.Uploads = mem
	}
	if stores.Events == nil {
		stores.Events = mem
	}

	if opts.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "data/uploads"
	}
	if opts.OutboxInterval <= 0 {
		opts.OutboxInterval = 5 * time.Second
	}
	if opts.SweepSchedule == "" {
		opts.SweepSchedule = "@hourly"
	}
	if opts.EventRetention <= 0 {
		opts.EventRetention = 24 * time.Hour
	}

	manager := system.NewManager()

	productService := products.New(stores.Products, stores.Events, opts.Cache, log)
	if opts.Reserver != nil {
		productService.AttachStockReserver(opts.Reserver)
	}
	userService := users.New(stores.Users, []byte(opts.JWTSecret), opts.TokenTTL, log)
	uploadService := uploads.New(stores.Uploads, stores.Events, opts.UploadDir, opts.UploadMaxBytes, log)

	worker := outbox.NewWorker(stores.Events, opts.OutboxInterval, log)
	sweeper := outbox.NewSweeper(stores.Events, opts.SweepSchedule, opts.EventRetention, uploadService, log)

	for _, svc := range []system.Service{worker, sweeper} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:  manager,
		log:      log,
		Products: productService,
		Users:    userService,
		Uploads:  uploadService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
