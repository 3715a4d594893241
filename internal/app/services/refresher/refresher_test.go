package refresher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/soni0021/apiservices-backend/internal/app/domain/catalog"
	"github.com/soni0021/apiservices-backend/internal/app/domain/record"
	"github.com/soni0021/apiservices-backend/internal/app/services/registry"
	"github.com/soni0021/apiservices-backend/internal/app/services/resolver"
	"github.com/soni0021/apiservices-backend/internal/app/storage/memory"
)

type countingProvider struct {
	calls int
}

func (p *countingProvider) ID() string       { return "p1" }
func (p *countingProvider) Configured() bool { return true }

func (p *countingProvider) Fetch(_ context.Context, _ catalog.Service, _ string) (json.RawMessage, bool, error) {
	p.calls++
	return json.RawMessage(`{"price":100}`), true, nil
}

func TestTickRefreshesOnlyStaleRecords(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	reg := registry.New(store, nil)
	if err := reg.Load(ctx, []catalog.Service{
		{ID: "fuel-price", Name: "Fuel", Active: true, Cost: 1, Fallbacks: []string{"p1"}, TTL: time.Hour, Refresh: true},
		{ID: "rc", Name: "RC", Active: true, Cost: 2, Fallbacks: []string{"p1"}},
	}); err != nil {
		t.Fatalf("load: %v", err)
	}

	provider := &countingProvider{}
	res := resolver.New(store, []resolver.Provider{provider}, nil)

	// One stale, one fresh, plus a record for a non-refresh service.
	for _, rec := range []record.Record{
		{ServiceID: "fuel-price", LookupKey: "delhi", Payload: []byte(`{}`), Source: "p1", FetchedAt: time.Now().Add(-2 * time.Hour)},
		{ServiceID: "fuel-price", LookupKey: "mumbai", Payload: []byte(`{}`), Source: "p1", FetchedAt: time.Now()},
		{ServiceID: "rc", LookupKey: "KA01", Payload: []byte(`{}`), Source: "p1", FetchedAt: time.Now().Add(-48 * time.Hour)},
	} {
		if _, err := store.PutRecord(ctx, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	r := New(reg, res, store, time.Minute, nil)
	r.tick(ctx)

	if provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1 (only the stale fuel record)", provider.calls)
	}

	refreshed, err := store.GetRecord(ctx, "fuel-price", "delhi")
	if err != nil {
		t.Fatalf("get refreshed: %v", err)
	}
	if string(refreshed.Payload) != `{"price":100}` {
		t.Fatalf("payload = %s, want refreshed data", refreshed.Payload)
	}
}

func TestStartStop(t *testing.T) {
	store := memory.New()
	reg := registry.New(store, nil)
	res := resolver.New(store, nil, nil)

	r := New(reg, res, store, 50*time.Millisecond, nil)
	ctx := context.Background()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Starting twice is a no-op.
	if err := r.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
