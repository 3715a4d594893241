// Package gate validates API keys and their service entitlements.
package gate

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/soni0021/apiservices-backend/internal/app/domain/grant"
	"github.com/soni0021/apiservices-backend/internal/app/storage"
	"github.com/soni0021/apiservices-backend/internal/errors"
	"github.com/soni0021/apiservices-backend/pkg/logger"
)

// KeyPrefix is prepended to every minted API key.
const KeyPrefix = "sk_live"

// displayPrefixLen is how much of a key is kept for display after minting.
const displayPrefixLen = 12

// Service authorizes API keys against the grant store. Authorization is a
// pure lookup; the only side effect is a best-effort last-used-at touch.
type Service struct {
	grants storage.GrantStore
	log    *logger.Logger
}

// New constructs an access gate.
func New(grants storage.GrantStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("gate")
	}
	return &Service{grants: grants, log: log}
}

// Authorize checks that the presented key exists, is active and is entitled
// to the requested service. The matched grant is returned even when the
// entitlement check fails, so callers can attribute the rejection.
func (s *Service) Authorize(ctx context.Context, apiKey, serviceID string) (grant.Grant, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return grant.Grant{}, errors.Unauthenticated("missing API key")
	}

	g, err := s.grants.GetGrantByHash(ctx, HashKey(apiKey))
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return grant.Grant{}, errors.Unauthenticated("")
		}
		return grant.Grant{}, errors.Internal("grant lookup failed", err)
	}
	if !g.Active {
		return grant.Grant{}, errors.Unauthenticated("API key is inactive")
	}
	if !g.Entitles(serviceID) {
		return g, errors.Forbidden(
			fmt.Sprintf("API key does not have access to service %q", serviceID))
	}

	s.touch(g.ID)
	return g, nil
}

// Identify resolves the presented key to its grant without checking any
// service entitlement. Account-scoped endpoints (balance, usage) use this.
func (s *Service) Identify(ctx context.Context, apiKey string) (grant.Grant, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return grant.Grant{}, errors.Unauthenticated("missing API key")
	}

	g, err := s.grants.GetGrantByHash(ctx, HashKey(apiKey))
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return grant.Grant{}, errors.Unauthenticated("")
		}
		return grant.Grant{}, errors.Internal("grant lookup failed", err)
	}
	if !g.Active {
		return grant.Grant{}, errors.Unauthenticated("API key is inactive")
	}
	return g, nil
}

// touch updates last-used-at without blocking or failing the request.
func (s *Service) touch(grantID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.grants.TouchGrant(ctx, grantID, time.Now().UTC()); err != nil {
			s.log.WithError(err).WithField("grant_id", grantID).Debug("touch grant failed")
		}
	}()
}

// Mint generates a fresh API key and persists its grant. The full key is
// returned exactly once; only the hash is stored.
func (s *Service) Mint(ctx context.Context, callerID string, services []string) (string, grant.Grant, error) {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return "", grant.Grant{}, errors.InvalidRequest("caller_id is required")
	}
	if len(services) == 0 {
		services = []string{grant.Wildcard}
	}

	key, err := generateKey()
	if err != nil {
		return "", grant.Grant{}, errors.Internal("generate API key", err)
	}

	g, err := s.grants.CreateGrant(ctx, grant.Grant{
		KeyHash:   HashKey(key),
		KeyPrefix: key[:displayPrefixLen],
		CallerID:  callerID,
		Services:  services,
		Active:    true,
	})
	if err != nil {
		return "", grant.Grant{}, err
	}

	s.log.WithField("caller_id", callerID).
		WithField("key_prefix", g.KeyPrefix).
		Info("API key minted")
	return key, g, nil
}

// HashKey hashes an API key for storage and lookup.
func HashKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

func generateKey() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	random := base64.RawURLEncoding.EncodeToString(raw)
	if len(random) > 32 {
		random = random[:32]
	}
	return KeyPrefix + "_" + random, nil
}
