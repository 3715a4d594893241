package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soni0021/apiservices-backend/internal/app/domain/catalog"
)

// catalogFile is the on-disk shape of config/services.yaml.
type catalogFile struct {
	Services []catalogEntry `yaml:"services"`
}

type catalogEntry struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Category    string   `yaml:"category"`
	Active      *bool    `yaml:"active"`
	Cost        int64    `yaml:"cost"`
	LookupParam string   `yaml:"lookup_param"`
	Fallbacks   []string `yaml:"fallbacks"`
	TTL         string   `yaml:"ttl"`
	Refresh     bool     `yaml:"refresh"`
}

// LoadCatalog parses the service catalog from path.
func LoadCatalog(path string) ([]catalog.Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	out := make([]catalog.Service, 0, len(file.Services))
	for _, e := range file.Services {
		if e.ID == "" {
			return nil, fmt.Errorf("catalog entry missing id")
		}
		svc := catalog.Service{
			ID:          e.ID,
			Name:        e.Name,
			Category:    e.Category,
			Active:      true,
			Cost:        e.Cost,
			LookupParam: e.LookupParam,
			Fallbacks:   e.Fallbacks,
			Refresh:     e.Refresh,
		}
		if e.Active != nil {
			svc.Active = *e.Active
		}
		if svc.LookupParam == "" {
			svc.LookupParam = "key"
		}
		if e.TTL != "" {
			ttl, err := time.ParseDuration(e.TTL)
			if err != nil {
				return nil, fmt.Errorf("catalog entry %s: bad ttl %q: %w", e.ID, e.TTL, err)
			}
			svc.TTL = ttl
		}
		out = append(out, svc)
	}
	return out, nil
}

// LoadCatalogOrDefault falls back to the built-in catalog when the file is
// absent, which keeps local development working without any config.
func LoadCatalogOrDefault(path string) ([]catalog.Service, error) {
	defs, err := LoadCatalog(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return DefaultCatalog(), nil
		}
		return nil, err
	}
	return defs, nil
}

// DefaultCatalog is the built-in service list. Document-number lookups are
// authoritative once stored (zero TTL); published-rate services expire and
// refresh in the background.
func DefaultCatalog() []catalog.Service {
	chain := []string{"provider_1", "provider_2", "provider_3"}
	return []catalog.Service{
		{ID: "rc", Name: "Vehicle RC Lookup", Category: "vehicle", Active: true, Cost: 2, LookupParam: "rc_number", Fallbacks: chain},
		{ID: "challan", Name: "Traffic Challan Lookup", Category: "vehicle", Active: true, Cost: 2, LookupParam: "rc_number", Fallbacks: chain, TTL: 24 * time.Hour},
		{ID: "licence", Name: "Driving Licence Verification", Category: "identity", Active: true, Cost: 2, LookupParam: "licence_number", Fallbacks: chain},
		{ID: "pan", Name: "PAN Verification", Category: "identity", Active: true, Cost: 1, LookupParam: "pan_number", Fallbacks: chain},
		{ID: "voter-id", Name: "Voter ID Verification", Category: "identity", Active: true, Cost: 1, LookupParam: "epic_number", Fallbacks: chain},
		{ID: "gst", Name: "GST Registration Lookup", Category: "business", Active: true, Cost: 1, LookupParam: "gstin", Fallbacks: chain},
		{ID: "msme", Name: "MSME Registration Lookup", Category: "business", Active: true, Cost: 1, LookupParam: "registration_number", Fallbacks: chain},
		{ID: "udyam", Name: "Udyam Registration Lookup", Category: "business", Active: true, Cost: 1, LookupParam: "udyam_number", Fallbacks: chain},
		{ID: "fuel-price", Name: "Daily Fuel Price", Category: "rates", Active: true, Cost: 1, LookupParam: "city", Fallbacks: chain, TTL: 6 * time.Hour, Refresh: true},
	}
}
