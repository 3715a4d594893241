package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/soni0021/apiservices-backend/internal/errors"
)

// mintKey issues a new API key. The plaintext key appears in this response
// and nowhere else.
func (h *handler) mintKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CallerID string   `json:"caller_id"`
		Services []string `json:"services"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeError(w, err)
		return
	}

	key, g, err := h.app.Gate.Mint(r.Context(), body.CallerID, body.Services)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"api_key":    key,
		"key_prefix": g.KeyPrefix,
		"caller_id":  g.CallerID,
		"services":   g.Services,
	})
}

func (h *handler) setServiceActive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeError(w, err)
		return
	}

	def, err := h.app.Registry.SetActive(r.Context(), mux.Vars(r)["service"], body.Active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     def.ID,
		"active": def.Active,
	})
}

func (h *handler) topup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount    int64  `json:"amount"`
		Reference string `json:"reference"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeError(w, err)
		return
	}

	acct, err := h.app.Ledger.Topup(r.Context(), mux.Vars(r)["caller"], body.Amount, body.Reference)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"caller_id": acct.CallerID,
		"balance":   acct.Balance,
	})
}

func (h *handler) adminUsage(w http.ResponseWriter, r *http.Request) {
	entries, err := h.app.Usage.List(r.Context(), limitParam(r))
	if err != nil {
		writeError(w, errors.Internal("list usage failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"usage": entries})
}
