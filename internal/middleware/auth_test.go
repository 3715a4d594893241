package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soni0021/apiservices-backend/internal/app/domain/user"
	"github.com/soni0021/apiservices-backend/internal/app/services/auth"
	"github.com/soni0021/apiservices-backend/internal/app/storage/memory"
)

func newAuthFixture(t *testing.T) (*AdminAuth, string, string) {
	t.Helper()
	svc := auth.New(memory.New(), "test-secret", time.Hour, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "admin@example.com", "pw", user.RoleAdmin); err != nil {
		t.Fatalf("register admin: %v", err)
	}
	if _, err := svc.Register(ctx, "client@example.com", "pw", user.RoleClient); err != nil {
		t.Fatalf("register client: %v", err)
	}

	adminTok, _, err := svc.Login(ctx, "admin@example.com", "pw")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	clientTok, _, err := svc.Login(ctx, "client@example.com", "pw")
	if err != nil {
		t.Fatalf("client login: %v", err)
	}
	return NewAdminAuth(svc, nil), adminTok, clientTok
}

func protected(m *AdminAuth) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return m.Handler(m.RequireAdmin(inner))
}

func TestAdminAuthAcceptsAdminToken(t *testing.T) {
	m, adminTok, _ := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminTok)
	rec := httptest.NewRecorder()
	protected(m).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestAdminAuthRejectsClientRole(t *testing.T) {
	m, _, clientTok := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+clientTok)
	rec := httptest.NewRecorder()
	protected(m).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestAdminAuthRejectsMissingOrMalformedHeader(t *testing.T) {
	m, adminTok, _ := newAuthFixture(t)

	for _, header := range []string{"", "Token abc", adminTok} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		protected(m).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestRateLimiterThrottles(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := rl.Handler(inner)

	statuses := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
		req.Header.Set("X-API-Key", "same-key")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	// Burst of 2 passes, the rest are throttled.
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("burst rejected: %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests || statuses[3] != http.StatusTooManyRequests {
		t.Fatalf("overflow not throttled: %v", statuses)
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := rl.Handler(inner)

	for _, key := range []string{"key-a", "key-b"} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-API-Key", key)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("first request for %s throttled", key)
		}
	}
}
