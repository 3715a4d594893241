// Package app wires the gateway's services together and manages their
// lifecycle.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/soni0021/apiservices-backend/internal/app/domain/catalog"
	"github.com/soni0021/apiservices-backend/internal/app/services/auth"
	"github.com/soni0021/apiservices-backend/internal/app/services/gate"
	"github.com/soni0021/apiservices-backend/internal/app/services/ledger"
	"github.com/soni0021/apiservices-backend/internal/app/services/pipeline"
	"github.com/soni0021/apiservices-backend/internal/app/services/refresher"
	"github.com/soni0021/apiservices-backend/internal/app/services/registry"
	"github.com/soni0021/apiservices-backend/internal/app/services/resolver"
	"github.com/soni0021/apiservices-backend/internal/app/services/usagelog"
	"github.com/soni0021/apiservices-backend/internal/app/storage"
	"github.com/soni0021/apiservices-backend/internal/app/storage/memory"
	"github.com/soni0021/apiservices-backend/internal/app/system"
	"github.com/soni0021/apiservices-backend/internal/config"
	"github.com/soni0021/apiservices-backend/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Grants   storage.GrantStore
	Services storage.ServiceStore
	Credits  storage.CreditStore
	Records  storage.RecordStore
	Usage    storage.UsageStore
	Users    storage.UserStore
}

// Options carries the non-store configuration the application needs.
type Options struct {
	Catalog         []catalog.Service
	Providers       []config.Provider
	JWTSecret       string
	JWTTTL          time.Duration
	RefreshInterval time.Duration
	HTTPClient      *http.Client
}

// Application ties the gateway services together.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Gate     *gate.Service
	Registry *registry.Service
	Ledger   *ledger.Service
	Resolver *resolver.Service
	Usage    *usagelog.Service
	Auth     *auth.Service
	Pipeline *pipeline.Service
}

// New builds a fully initialised application. The catalog in opts is loaded
// into the service store before the application is returned.
func New(ctx context.Context, stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Grants == nil {
		stores.Grants = mem
	}
	if stores.Services == nil {
		stores.Services = mem
	}
	if stores.Credits == nil {
		stores.Credits = mem
	}
	if stores.Records == nil {
		stores.Records = mem
	}
	if stores.Usage == nil {
		stores.Usage = mem
	}
	if stores.Users == nil {
		stores.Users = mem
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	providers := make([]resolver.Provider, 0, len(opts.Providers))
	for _, pc := range opts.Providers {
		p, err := resolver.NewHTTPProvider(pc.ID, pc.URL, pc.APIKey, httpClient, log)
		if err != nil {
			return nil, err
		}
		if !p.Configured() {
			log.WithField("provider", pc.ID).Warn("provider has no URL; it will be skipped")
		}
		providers = append(providers, p)
	}

	a := &Application{
		manager:  system.NewManager(log),
		log:      log,
		Gate:     gate.New(stores.Grants, log),
		Registry: registry.New(stores.Services, log),
		Ledger:   ledger.New(stores.Credits, log),
		Resolver: resolver.New(stores.Records, providers, log),
		Usage:    usagelog.New(stores.Usage, log),
		Auth:     auth.New(stores.Users, opts.JWTSecret, opts.JWTTTL, log),
	}
	a.Pipeline = pipeline.New(a.Gate, a.Registry, a.Ledger, a.Resolver, a.Usage, log)

	if len(opts.Catalog) > 0 {
		if err := a.Registry.Load(ctx, opts.Catalog); err != nil {
			return nil, err
		}
	}

	a.manager.Register(refresher.New(a.Registry, a.Resolver, stores.Records, opts.RefreshInterval, log))
	return a, nil
}

// Start brings background services up.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop shuts background services down.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
