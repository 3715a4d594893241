// Package httpapi exposes the gateway's REST surface.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/soni0021/apiservices-backend/internal/app"
	"github.com/soni0021/apiservices-backend/internal/errors"
	"github.com/soni0021/apiservices-backend/internal/metrics"
	"github.com/soni0021/apiservices-backend/internal/middleware"
	"github.com/soni0021/apiservices-backend/pkg/logger"
)

const apiKeyHeader = "X-API-Key"

type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns the router for the full API surface. The rate limiter is
// optional; pass nil to disable throttling (tests do).
func NewHandler(application *app.Application, rl *middleware.RateLimiter, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	r := mux.NewRouter()
	r.Use(middleware.Logging(log))
	r.Use(middleware.Metrics())

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	if rl != nil {
		api.Use(rl.Handler)
	}

	api.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	api.HandleFunc("/services", h.listServices).Methods(http.MethodGet)
	api.HandleFunc("/services/{service}", h.execute).Methods(http.MethodPost)
	api.HandleFunc("/credits", h.credits).Methods(http.MethodGet)
	api.HandleFunc("/usage", h.callerUsage).Methods(http.MethodGet)

	adminAuth := middleware.NewAdminAuth(application.Auth, log)
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(adminAuth.Handler, adminAuth.RequireAdmin)
	admin.HandleFunc("/keys", h.mintKey).Methods(http.MethodPost)
	admin.HandleFunc("/services/{service}/active", h.setServiceActive).Methods(http.MethodPost)
	admin.HandleFunc("/credits/{caller}/topup", h.topup).Methods(http.MethodPost)
	admin.HandleFunc("/usage", h.adminUsage).Methods(http.MethodGet)

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// execute serves one metered lookup. The body carries the lookup key either
// under "lookup_key" or under the service's own parameter name.
func (h *handler) execute(w http.ResponseWriter, r *http.Request) {
	serviceID := mux.Vars(r)["service"]

	var body map[string]string
	if err := decodeJSON(r.Body, &body); err != nil {
		writeError(w, err)
		return
	}

	key, err := lookupKeyFrom(body)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.app.Pipeline.Execute(r.Context(), r.Header.Get(apiKeyHeader), serviceID, key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// lookupKeyFrom accepts {"lookup_key": v} or a single-field body whose field
// name is the service's lookup parameter.
func lookupKeyFrom(body map[string]string) (string, error) {
	if v, ok := body["lookup_key"]; ok {
		return v, nil
	}
	if len(body) == 1 {
		for _, v := range body {
			return v, nil
		}
	}
	return "", errors.InvalidRequest("request body must carry exactly one lookup field")
}

func (h *handler) listServices(w http.ResponseWriter, r *http.Request) {
	defs, err := h.app.Registry.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	type serviceView struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Category    string `json:"category"`
		Active      bool   `json:"active"`
		Cost        int64  `json:"cost"`
		LookupParam string `json:"lookup_param"`
	}
	out := make([]serviceView, 0, len(defs))
	for _, d := range defs {
		out = append(out, serviceView{
			ID: d.ID, Name: d.Name, Category: d.Category,
			Active: d.Active, Cost: d.Cost, LookupParam: d.LookupParam,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"services": out})
}

func (h *handler) credits(w http.ResponseWriter, r *http.Request) {
	g, err := h.app.Gate.Identify(r.Context(), r.Header.Get(apiKeyHeader))
	if err != nil {
		writeError(w, err)
		return
	}

	acct, err := h.app.Ledger.Balance(r.Context(), g.CallerID)
	if err != nil {
		// A caller with no account simply has a zero balance.
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"caller_id": g.CallerID,
			"balance":   0,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"caller_id": acct.CallerID,
		"balance":   acct.Balance,
	})
}

func (h *handler) callerUsage(w http.ResponseWriter, r *http.Request) {
	g, err := h.app.Gate.Identify(r.Context(), r.Header.Get(apiKeyHeader))
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.app.Usage.ListByCaller(r.Context(), g.CallerID, limitParam(r))
	if err != nil {
		writeError(w, errors.Internal("list usage failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"usage": entries})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeError(w, err)
		return
	}

	token, u, err := h.app.Auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]string{
			"id":    u.ID,
			"email": u.Email,
			"role":  u.Role,
		},
	})
}

func limitParam(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 50
}
