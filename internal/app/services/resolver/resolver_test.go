package resolver

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/soni0021/apiservices-backend/internal/app/domain/catalog"
	"github.com/soni0021/apiservices-backend/internal/app/domain/record"
	"github.com/soni0021/apiservices-backend/internal/app/storage/memory"
	"github.com/soni0021/apiservices-backend/internal/errors"
)

type fakeProvider struct {
	id         string
	configured bool
	payload    json.RawMessage
	found      bool
	err        error
	calls      int
}

func (f *fakeProvider) ID() string       { return f.id }
func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) Fetch(_ context.Context, _ catalog.Service, _ string) (json.RawMessage, bool, error) {
	f.calls++
	return f.payload, f.found, f.err
}

func testDef(fallbacks ...string) catalog.Service {
	return catalog.Service{
		ID:          "rc",
		Name:        "Vehicle RC Lookup",
		Active:      true,
		Cost:        2,
		LookupParam: "rc_number",
		Fallbacks:   fallbacks,
	}
}

func TestResolveLocalFastPath(t *testing.T) {
	store := memory.New()
	provider := &fakeProvider{id: "p1", configured: true, found: true, payload: json.RawMessage(`{"x":1}`)}
	svc := New(store, []Provider{provider}, nil)

	if _, err := store.PutRecord(context.Background(), record.Record{
		ServiceID: "rc", LookupKey: "KA01AB1234",
		Payload: json.RawMessage(`{"owner":"A"}`), Source: "p2",
	}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	res, err := svc.Resolve(context.Background(), testDef("p1"), "KA01AB1234")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != record.SourceLocal {
		t.Fatalf("source = %q, want local", res.Source)
	}
	if provider.calls != 0 {
		t.Fatalf("provider consulted %d times on fast path, want 0", provider.calls)
	}
}

func TestResolveFallbackOrder(t *testing.T) {
	store := memory.New()
	p1 := &fakeProvider{id: "p1", configured: true, err: stderrors.New("timeout")}
	p2 := &fakeProvider{id: "p2", configured: true, found: true, payload: json.RawMessage(`{"owner":"B"}`)}
	p3 := &fakeProvider{id: "p3", configured: true, found: true, payload: json.RawMessage(`{"owner":"C"}`)}
	svc := New(store, []Provider{p1, p2, p3}, nil)

	res, err := svc.Resolve(context.Background(), testDef("p1", "p2", "p3"), "KA01AB1234")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != "p2" {
		t.Fatalf("source = %q, want p2", res.Source)
	}
	if p3.calls != 0 {
		t.Fatalf("chain did not stop at first hit; p3 called %d times", p3.calls)
	}
}

func TestResolveSkipsUnconfigured(t *testing.T) {
	store := memory.New()
	p1 := &fakeProvider{id: "p1", configured: false}
	p2 := &fakeProvider{id: "p2", configured: true, found: true, payload: json.RawMessage(`{"ok":true}`)}
	svc := New(store, []Provider{p1, p2}, nil)

	res, err := svc.Resolve(context.Background(), testDef("p1", "missing", "p2"), "X")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != "p2" {
		t.Fatalf("source = %q, want p2", res.Source)
	}
	if p1.calls != 0 {
		t.Fatal("unconfigured provider was consulted")
	}
}

func TestResolvePersistsAndSecondCallIsLocal(t *testing.T) {
	store := memory.New()
	p1 := &fakeProvider{id: "p1", configured: true, found: true, payload: json.RawMessage(`{"owner":"A"}`)}
	svc := New(store, []Provider{p1}, nil)
	def := testDef("p1")

	first, err := svc.Resolve(context.Background(), def, "KA01AB1234")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if first.Source != "p1" {
		t.Fatalf("first source = %q, want p1", first.Source)
	}

	second, err := svc.Resolve(context.Background(), def, "KA01AB1234")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if second.Source != record.SourceLocal {
		t.Fatalf("second source = %q, want local", second.Source)
	}
	if p1.calls != 1 {
		t.Fatalf("provider called %d times, want 1", p1.calls)
	}
}

func TestResolveDefinitiveMiss(t *testing.T) {
	store := memory.New()
	p1 := &fakeProvider{id: "p1", configured: true, found: false}
	svc := New(store, []Provider{p1}, nil)

	_, err := svc.Resolve(context.Background(), testDef("p1"), "UNKNOWN")
	if !errors.IsCode(err, errors.CodeRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}

func TestResolveEmptyChainIsNotFound(t *testing.T) {
	svc := New(memory.New(), nil, nil)

	_, err := svc.Resolve(context.Background(), testDef(), "X")
	if !errors.IsCode(err, errors.CodeRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}

func TestResolveExhaustedChainIsNotFound(t *testing.T) {
	p1 := &fakeProvider{id: "p1", configured: true, err: stderrors.New("down")}
	p2 := &fakeProvider{id: "p2", configured: true, err: stderrors.New("down")}
	svc := New(memory.New(), []Provider{p1, p2}, nil)

	// With no local record to fall back on, total provider failure reads as
	// a miss, not an upstream outage.
	_, err := svc.Resolve(context.Background(), testDef("p1", "p2"), "X")
	if !errors.IsCode(err, errors.CodeRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
	if p1.calls != 1 || p2.calls != 1 {
		t.Fatalf("provider calls = %d, %d; want 1, 1", p1.calls, p2.calls)
	}
}

func TestResolveServesStaleWhenProvidersFail(t *testing.T) {
	store := memory.New()
	p1 := &fakeProvider{id: "p1", configured: true, err: stderrors.New("down")}
	svc := New(store, []Provider{p1}, nil)

	def := testDef("p1")
	def.TTL = time.Hour

	if _, err := store.PutRecord(context.Background(), record.Record{
		ServiceID: "rc", LookupKey: "X",
		Payload: json.RawMessage(`{"owner":"old"}`), Source: "p1",
		FetchedAt: time.Now().Add(-2 * time.Hour),
	}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	res, err := svc.Resolve(context.Background(), def, "X")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Stale {
		t.Fatal("expected a stale result")
	}
	if res.Source != record.SourceLocal {
		t.Fatalf("source = %q, want local", res.Source)
	}
	if p1.calls != 1 {
		t.Fatalf("provider called %d times, want 1", p1.calls)
	}
}

func TestResolveStaleRecordRefetches(t *testing.T) {
	store := memory.New()
	p1 := &fakeProvider{id: "p1", configured: true, found: true, payload: json.RawMessage(`{"owner":"new"}`)}
	svc := New(store, []Provider{p1}, nil)

	def := testDef("p1")
	def.TTL = time.Hour

	if _, err := store.PutRecord(context.Background(), record.Record{
		ServiceID: "rc", LookupKey: "X",
		Payload: json.RawMessage(`{"owner":"old"}`), Source: "p1",
		FetchedAt: time.Now().Add(-2 * time.Hour),
	}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	res, err := svc.Resolve(context.Background(), def, "X")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != "p1" {
		t.Fatalf("source = %q, want p1", res.Source)
	}
	if string(res.Record.Payload) != `{"owner":"new"}` {
		t.Fatalf("payload = %s, want refreshed data", res.Record.Payload)
	}

	stored, err := store.GetRecord(context.Background(), "rc", "X")
	if err != nil {
		t.Fatalf("get stored record: %v", err)
	}
	if string(stored.Payload) != `{"owner":"new"}` {
		t.Fatal("refetched record was not persisted")
	}
}

func TestResolveEmptyKeyRejected(t *testing.T) {
	svc := New(memory.New(), nil, nil)

	_, err := svc.Resolve(context.Background(), testDef(), "   ")
	if !errors.IsCode(err, errors.CodeInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}
