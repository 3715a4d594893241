// Package resolver answers lookups from the local record store first and
// walks the service's provider chain when the store cannot.
package resolver

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/soni0021/apiservices-backend/internal/app/domain/catalog"
	"github.com/soni0021/apiservices-backend/internal/app/domain/record"
	"github.com/soni0021/apiservices-backend/internal/app/storage"
	"github.com/soni0021/apiservices-backend/internal/errors"
	"github.com/soni0021/apiservices-backend/internal/metrics"
	"github.com/soni0021/apiservices-backend/pkg/logger"
)

// Provider fetches a record from one external upstream. found=false with a
// nil error is a definitive "no such entity" answer; a non-nil error means
// the upstream could not be consulted and the chain moves on.
type Provider interface {
	ID() string
	Configured() bool
	Fetch(ctx context.Context, def catalog.Service, lookupKey string) (payload json.RawMessage, found bool, err error)
}

// Result is one resolved lookup. Source is record.SourceLocal when the answer
// came from the store, otherwise the provider that produced it. Stale marks a
// local answer that outlived its TTL and was served because every provider in
// the chain failed.
type Result struct {
	Record record.Record
	Source string
	Stale  bool
}

// Service implements store-first resolution with ordered provider fallback.
type Service struct {
	records   storage.RecordStore
	providers map[string]Provider
	log       *logger.Logger
	now       func() time.Time
}

// New constructs a resolver over the record store and the given providers.
func New(records storage.RecordStore, providers []Provider, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("resolver")
	}
	byID := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if p != nil {
			byID[p.ID()] = p
		}
	}
	return &Service{
		records:   records,
		providers: byID,
		log:       log,
		now:       time.Now,
	}
}

// Resolve answers a lookup for the given service definition. A fresh local
// record short-circuits the provider chain entirely; otherwise providers are
// tried in the definition's order and the first hit is persisted so the next
// identical lookup is served locally.
func (s *Service) Resolve(ctx context.Context, def catalog.Service, lookupKey string) (Result, error) {
	lookupKey = strings.TrimSpace(lookupKey)
	if lookupKey == "" {
		return Result{}, errors.InvalidRequest("lookup key is required")
	}

	var stale *record.Record
	rec, err := s.records.GetRecord(ctx, def.ID, lookupKey)
	switch {
	case err == nil:
		if rec.FreshWithin(def.TTL, s.now().UTC()) {
			metrics.RecordLookup(def.ID, record.SourceLocal)
			return Result{Record: rec, Source: record.SourceLocal}, nil
		}
		stale = &rec
	case stderrors.Is(err, storage.ErrNotFound):
		// fall through to the provider chain
	default:
		return Result{}, errors.Internal("record lookup failed", err)
	}

	res, err := s.fetch(ctx, def, lookupKey)
	if err == nil {
		return res, nil
	}

	if errors.IsCode(err, errors.CodeProviderUnavailable) {
		if stale != nil {
			s.log.WithField("service", def.ID).
				WithField("age", s.now().UTC().Sub(stale.FetchedAt).String()).
				Warn("all providers failed, serving stale record")
			metrics.RecordLookup(def.ID, "stale")
			return Result{Record: *stale, Source: record.SourceLocal, Stale: true}, nil
		}
		// An exhausted chain is indistinguishable from a miss to the caller.
		return Result{}, errors.RecordNotFound(def.ID, lookupKey)
	}
	return Result{}, err
}

// providerTimeout bounds each attempt so one slow upstream cannot eat the
// whole chain's budget.
const providerTimeout = 8 * time.Second

// fetch walks the fallback chain. Unconfigured or unknown providers are
// skipped, failing providers are logged and skipped, and a definitive miss
// from any provider ends the walk.
func (s *Service) fetch(ctx context.Context, def catalog.Service, lookupKey string) (Result, error) {
	attempted := false
	missed := false

	for _, id := range def.Fallbacks {
		p, ok := s.providers[id]
		if !ok || !p.Configured() {
			s.log.WithField("service", def.ID).
				WithField("provider", id).
				Debug("provider not configured, skipping")
			continue
		}
		attempted = true

		fetchCtx, cancel := context.WithTimeout(ctx, providerTimeout)
		payload, found, err := p.Fetch(fetchCtx, def, lookupKey)
		cancel()
		if err != nil {
			metrics.ProviderFetch(id, "error")
			s.log.WithError(err).
				WithField("service", def.ID).
				WithField("provider", id).
				Warn("provider fetch failed")
			continue
		}
		if !found {
			metrics.ProviderFetch(id, "miss")
			missed = true
			continue
		}

		metrics.ProviderFetch(id, "hit")
		rec := record.Record{
			ServiceID: def.ID,
			LookupKey: lookupKey,
			Payload:   payload,
			Source:    id,
			FetchedAt: s.now().UTC(),
		}
		if _, err := s.records.PutRecord(ctx, rec); err != nil {
			// The caller still gets the data; only the cache misses out.
			s.log.WithError(err).
				WithField("service", def.ID).
				WithField("provider", id).
				Warn("persist fetched record failed")
		}
		metrics.RecordLookup(def.ID, id)
		return Result{Record: rec, Source: id}, nil
	}

	if missed || !attempted {
		return Result{}, errors.RecordNotFound(def.ID, lookupKey)
	}
	return Result{}, errors.ProviderUnavailable(def.ID)
}
