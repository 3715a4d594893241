// Package refresher keeps refresh-enabled catalog data warm by re-resolving
// stored records before their TTL lapses.
package refresher

import (
	"context"
	"sync"
	"time"

	"github.com/soni0021/apiservices-backend/internal/app/services/registry"
	"github.com/soni0021/apiservices-backend/internal/app/services/resolver"
	"github.com/soni0021/apiservices-backend/internal/app/storage"
	"github.com/soni0021/apiservices-backend/internal/app/system"
	"github.com/soni0021/apiservices-backend/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// recordsPerTick caps how many records one service refreshes per cycle.
const recordsPerTick = 50

// Refresher is a lifecycle-managed background worker. Each tick it walks the
// active services flagged for refresh and re-resolves their stalest records,
// so frequently polled data (fuel prices, exchange-published registries) is
// usually served from the local store.
type Refresher struct {
	registry *registry.Service
	resolver *resolver.Service
	records  storage.RecordStore
	log      *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a refresher ticking at the given interval.
func New(reg *registry.Service, res *resolver.Service, records storage.RecordStore, interval time.Duration, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("record-refresher")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{
		registry: reg,
		resolver: res,
		records:  records,
		log:      log,
		interval: interval,
	}
}

func (r *Refresher) Name() string { return "record-refresher" }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("record refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("record refresher stopped")
	return nil
}

func (r *Refresher) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	defs, err := r.registry.List(ctx)
	if err != nil {
		r.log.WithError(err).Warn("record refresher tick failed")
		return
	}

	for _, def := range defs {
		if !def.Active || !def.Refresh || def.TTL <= 0 {
			continue
		}
		recs, err := r.records.ListRecords(ctx, def.ID, recordsPerTick)
		if err != nil {
			r.log.WithError(err).
				WithField("service", def.ID).
				Warn("list records for refresh failed")
			continue
		}
		now := time.Now().UTC()
		for _, rec := range recs {
			if rec.FreshWithin(def.TTL, now) {
				continue
			}
			if _, err := r.resolver.Resolve(ctx, def, rec.LookupKey); err != nil {
				r.log.WithError(err).
					WithField("service", def.ID).
					WithField("lookup_key", rec.LookupKey).
					Warn("refresh record failed")
			}
		}
	}
}
