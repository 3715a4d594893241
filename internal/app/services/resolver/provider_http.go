package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/soni0021/apiservices-backend/internal/app/domain/catalog"
	"github.com/soni0021/apiservices-backend/pkg/logger"
)

// maxProviderBody caps how much of a provider response is read.
const maxProviderBody = 1 << 20

// HTTPProvider talks to one upstream verification API. The upstream is
// expected to answer POST {base}/{service} with a JSON body carrying the
// lookup key and to respond with a JSON document.
type HTTPProvider struct {
	id      string
	base    *url.URL
	apiKey  string
	client  *http.Client
	log     *logger.Logger
	enabled bool
}

// NewHTTPProvider constructs a provider. An empty base URL yields a provider
// that reports itself unconfigured and is skipped by the resolver.
func NewHTTPProvider(id, baseURL, apiKey string, client *http.Client, log *logger.Logger) (*HTTPProvider, error) {
	if log == nil {
		log = logger.NewDefault("provider-" + id)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	p := &HTTPProvider{
		id:     id,
		apiKey: strings.TrimSpace(apiKey),
		client: client,
		log:    log,
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return p, nil
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse provider %s base url: %w", id, err)
	}
	p.base = parsed
	p.enabled = true
	return p, nil
}

func (p *HTTPProvider) ID() string { return p.id }

// Configured reports whether the provider has an endpoint to call.
func (p *HTTPProvider) Configured() bool { return p.enabled }

// Fetch performs one upstream lookup. A 404, or a 200 whose body declares
// success=false, is a definitive miss; other non-2xx statuses and transport
// errors are provider failures.
func (p *HTTPProvider) Fetch(ctx context.Context, def catalog.Service, lookupKey string) (json.RawMessage, bool, error) {
	if !p.enabled {
		return nil, false, fmt.Errorf("provider %s not configured", p.id)
	}

	endpoint := *p.base
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + "/" + def.ID

	body, err := json.Marshal(map[string]string{def.LookupParam: lookupKey})
	if err != nil {
		return nil, false, fmt.Errorf("encode provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(string(body)))
	if err != nil {
		return nil, false, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("provider %s request: %w", p.id, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return nil, false, fmt.Errorf("read provider %s response: %w", p.id, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, false, fmt.Errorf("provider %s status %d", p.id, resp.StatusCode)
	}

	if !gjson.ValidBytes(raw) {
		return nil, false, fmt.Errorf("provider %s returned invalid JSON", p.id)
	}
	if f := gjson.GetBytes(raw, "success"); f.Exists() && !f.Bool() {
		return nil, false, nil
	}
	// Unwrap the conventional data envelope when present.
	if data := gjson.GetBytes(raw, "data"); data.Exists() && data.IsObject() {
		return json.RawMessage(data.Raw), true, nil
	}
	return json.RawMessage(raw), true, nil
}
