package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/soni0021/apiservices-backend/internal/errors"
)

// maxBodyBytes caps request bodies; lookup payloads are tiny.
const maxBodyBytes = 64 << 10

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.InvalidRequest("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Internal("internal error", err)
	}
	writeJSON(w, se.HTTPStatus, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    se.Code,
			"message": se.Message,
			"details": se.Details,
		},
	})
}
