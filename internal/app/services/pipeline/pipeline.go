// Package pipeline runs a metered verification request end to end:
// authorize, resolve the service, reserve credits, resolve the record,
// then settle the reservation and log usage.
package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/soni0021/apiservices-backend/internal/app/domain/grant"
	"github.com/soni0021/apiservices-backend/internal/app/domain/usage"
	"github.com/soni0021/apiservices-backend/internal/app/services/gate"
	"github.com/soni0021/apiservices-backend/internal/app/services/ledger"
	"github.com/soni0021/apiservices-backend/internal/app/services/registry"
	"github.com/soni0021/apiservices-backend/internal/app/services/resolver"
	"github.com/soni0021/apiservices-backend/internal/app/services/usagelog"
	"github.com/soni0021/apiservices-backend/internal/errors"
	"github.com/soni0021/apiservices-backend/internal/metrics"
	"github.com/soni0021/apiservices-backend/pkg/logger"
)

// Response is a successfully served lookup.
type Response struct {
	ServiceID string          `json:"service"`
	LookupKey string          `json:"lookup_key"`
	Data      json.RawMessage `json:"data"`
	Source    string          `json:"source"`
	Stale     bool            `json:"stale,omitempty"`
	Credits   int64           `json:"credits_charged"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Service orchestrates the request stages. Credits move exactly once per
// request: the reservation is committed on success and released on every
// failure after it was taken.
type Service struct {
	gate     *gate.Service
	registry *registry.Service
	ledger   *ledger.Service
	resolver *resolver.Service
	usage    *usagelog.Service
	log      *logger.Logger
	now      func() time.Time
}

// New wires the pipeline from its stage services.
func New(g *gate.Service, reg *registry.Service, led *ledger.Service, res *resolver.Service, ul *usagelog.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("pipeline")
	}
	return &Service{
		gate:     g,
		registry: reg,
		ledger:   led,
		resolver: res,
		usage:    ul,
		log:      log,
		now:      time.Now,
	}
}

// Execute serves one metered request. Stages run in a fixed order so a
// request never spends credits before it is authorized, and never touches a
// provider before credits are held.
func (s *Service) Execute(ctx context.Context, apiKey, serviceID, lookupKey string) (Response, error) {
	start := s.now()

	g, err := s.gate.Authorize(ctx, apiKey, serviceID)
	if err != nil {
		// A forbidden request still carries the matched grant; log it.
		// Unauthenticated requests have no caller to attribute.
		if g.CallerID != "" {
			s.logUsage(g, serviceID, lookupKey, err, 0, "", start)
		}
		return Response{}, err
	}

	def, err := s.registry.Resolve(ctx, serviceID)
	if err != nil {
		s.logUsage(g, serviceID, lookupKey, err, 0, "", start)
		return Response{}, err
	}

	token, err := s.ledger.Reserve(ctx, g.CallerID, def.ID, def.Cost)
	if err != nil {
		s.logUsage(g, def.ID, lookupKey, err, 0, "", start)
		return Response{}, err
	}

	// Settlement must survive a caller disconnect: a canceled request context
	// would otherwise strand the reserved credits.
	settleCtx := context.WithoutCancel(ctx)

	res, err := s.resolver.Resolve(ctx, def, lookupKey)
	if err != nil {
		if relErr := s.ledger.Release(settleCtx, token); relErr != nil {
			s.log.WithError(relErr).
				WithField("caller_id", g.CallerID).
				Error("release reservation failed")
		}
		s.logUsage(g, def.ID, lookupKey, err, 0, "", start)
		return Response{}, err
	}

	s.ledger.Commit(settleCtx, token)
	metrics.CreditsCharged(def.ID, def.Cost)
	s.logUsage(g, def.ID, lookupKey, nil, def.Cost, res.Source, start)

	return Response{
		ServiceID: def.ID,
		LookupKey: res.Record.LookupKey,
		Data:      res.Record.Payload,
		Source:    res.Source,
		Stale:     res.Stale,
		Credits:   def.Cost,
		FetchedAt: res.Record.FetchedAt,
	}, nil
}

// logUsage emits exactly one entry for a terminal request state.
func (s *Service) logUsage(g grant.Grant, serviceID, lookupKey string, reqErr error, credits int64, source string, start time.Time) {
	outcome := usage.OutcomeSuccess
	status := http.StatusOK
	if reqErr != nil {
		status = http.StatusInternalServerError
		outcome = usage.OutcomeError
		if se := errors.GetServiceError(reqErr); se != nil {
			status = se.HTTPStatus
			if se.Code == errors.CodeRecordNotFound {
				outcome = usage.OutcomeNotFound
			}
		}
	}

	s.usage.Record(usage.Entry{
		CallerID:   g.CallerID,
		ServiceID:  serviceID,
		LookupKey:  lookupKey,
		Outcome:    outcome,
		Credits:    credits,
		Source:     source,
		StatusCode: status,
		DurationMS: s.now().Sub(start).Milliseconds(),
		CreatedAt:  s.now().UTC(),
	})
}
