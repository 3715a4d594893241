// Package registry resolves service identifiers against the catalog.
package registry

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/soni0021/apiservices-backend/internal/app/domain/catalog"
	"github.com/soni0021/apiservices-backend/internal/app/storage"
	"github.com/soni0021/apiservices-backend/internal/errors"
	"github.com/soni0021/apiservices-backend/pkg/logger"
)

// Service is the read-mostly catalog front. A request captures the definition
// returned by Resolve and uses that snapshot for the rest of its lifetime;
// enable/disable flips become visible to subsequent requests.
type Service struct {
	store storage.ServiceStore
	log   *logger.Logger
}

// New constructs a registry over the given catalog store.
func New(store storage.ServiceStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("registry")
	}
	return &Service{store: store, log: log}
}

// Resolve returns the definition for serviceID, rejecting unknown and
// inactive services before any credit or provider work happens.
func (s *Service) Resolve(ctx context.Context, serviceID string) (catalog.Service, error) {
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return catalog.Service{}, errors.ServiceNotFound(serviceID)
	}

	def, err := s.store.GetService(ctx, serviceID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return catalog.Service{}, errors.ServiceNotFound(serviceID)
		}
		return catalog.Service{}, errors.Internal("service lookup failed", err)
	}
	if !def.Active {
		return catalog.Service{}, errors.ServiceInactive(serviceID)
	}
	return def.Clone(), nil
}

// List returns the full catalog, active and inactive alike.
func (s *Service) List(ctx context.Context) ([]catalog.Service, error) {
	return s.store.ListServices(ctx)
}

// SetActive flips a service's active flag.
func (s *Service) SetActive(ctx context.Context, serviceID string, active bool) (catalog.Service, error) {
	def, err := s.store.SetServiceActive(ctx, serviceID, active)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return catalog.Service{}, errors.ServiceNotFound(serviceID)
		}
		return catalog.Service{}, err
	}
	s.log.WithField("service", serviceID).
		WithField("active", active).
		Info("service state changed")
	return def, nil
}

// Load replaces or inserts catalog definitions, typically at startup from the
// services config file.
func (s *Service) Load(ctx context.Context, defs []catalog.Service) error {
	for _, def := range defs {
		if _, err := s.store.UpsertService(ctx, def); err != nil {
			return err
		}
	}
	return nil
}
