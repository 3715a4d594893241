package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "services.yaml")
	data := `
services:
  - id: rc
    name: Vehicle RC Lookup
    category: vehicle
    cost: 2
    lookup_param: rc_number
    fallbacks: [provider_1, provider_2]
  - id: fuel-price
    name: Daily Fuel Price
    category: rates
    cost: 1
    lookup_param: city
    fallbacks: [provider_1]
    ttl: 6h
    refresh: true
  - id: legacy
    name: Disabled Service
    active: false
    cost: 1
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	defs, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs) != 3 {
		t.Fatalf("len = %d, want 3", len(defs))
	}

	rc := defs[0]
	if rc.ID != "rc" || rc.Cost != 2 || !rc.Active || rc.LookupParam != "rc_number" {
		t.Fatalf("rc = %+v", rc)
	}
	if len(rc.Fallbacks) != 2 || rc.Fallbacks[0] != "provider_1" {
		t.Fatalf("rc fallbacks = %v", rc.Fallbacks)
	}
	if rc.TTL != 0 {
		t.Fatalf("rc ttl = %v, want 0 (authoritative)", rc.TTL)
	}

	fuel := defs[1]
	if fuel.TTL != 6*time.Hour || !fuel.Refresh {
		t.Fatalf("fuel = %+v", fuel)
	}

	if defs[2].Active {
		t.Fatal("explicit active:false must be honored")
	}
}

func TestLoadCatalogBadTTL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "services.yaml")
	if err := os.WriteFile(path, []byte("services:\n  - id: x\n    ttl: nonsense\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected error for bad ttl")
	}
}

func TestLoadCatalogOrDefaultFallsBack(t *testing.T) {
	defs, err := LoadCatalogOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs) == 0 {
		t.Fatal("default catalog is empty")
	}
	seen := map[string]bool{}
	for _, d := range defs {
		if seen[d.ID] {
			t.Fatalf("duplicate service id %q in default catalog", d.ID)
		}
		seen[d.ID] = true
	}
	if !seen["rc"] || !seen["fuel-price"] {
		t.Fatalf("default catalog missing expected entries: %v", seen)
	}
}
