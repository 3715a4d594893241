// Package usagelog records one entry per metered request outcome.
package usagelog

import (
	"context"
	"time"

	"github.com/soni0021/apiservices-backend/internal/app/domain/usage"
	"github.com/soni0021/apiservices-backend/internal/app/storage"
	"github.com/soni0021/apiservices-backend/pkg/logger"
)

// appendTimeout bounds the detached write so a slow store cannot leak
// goroutines indefinitely.
const appendTimeout = 5 * time.Second

// Service appends usage entries without blocking the request path. Failures
// are logged and dropped; usage logging never fails a request.
type Service struct {
	store storage.UsageStore
	log   *logger.Logger
}

// New constructs a usage logger.
func New(store storage.UsageStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("usagelog")
	}
	return &Service{store: store, log: log}
}

// Record appends the entry in the background.
func (s *Service) Record(e usage.Entry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		defer cancel()
		if _, err := s.store.AppendUsage(ctx, e); err != nil {
			s.log.WithError(err).
				WithField("caller_id", e.CallerID).
				WithField("service", e.ServiceID).
				Warn("append usage entry failed")
		}
	}()
}

// RecordSync appends the entry inline. Tests and the admin backfill path use
// this to observe the write result.
func (s *Service) RecordSync(ctx context.Context, e usage.Entry) (usage.Entry, error) {
	return s.store.AppendUsage(ctx, e)
}

// ListByCaller returns the caller's most recent entries.
func (s *Service) ListByCaller(ctx context.Context, callerID string, limit int) ([]usage.Entry, error) {
	return s.store.ListUsageByCaller(ctx, callerID, limit)
}

// List returns the most recent entries across all callers.
func (s *Service) List(ctx context.Context, limit int) ([]usage.Entry, error) {
	return s.store.ListUsage(ctx, limit)
}
