package api

import (
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"net/http"

	warperrors "github.com/mirkobrombin/warp-kv/v1/errors"
)

type handler struct {
	svc CacheService
	log *slog.Logger
}

// setRequest is the write body. Both fields are required; value may be "".
type setRequest struct {
	Key   *string `json:"key"`
	Value *string `json:"value"`
}

func (h *handler) getEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.Fetch(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(entry); err != nil {
		h.log.WarnContext(r.Context(), "warpkv: write response failed", "error", err)
	}
}

func (h *handler) setEntry(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil || req.Key == nil || req.Value == nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := h.svc.Upsert(r.Context(), *req.Key, *req.Value); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// writeError maps service errors onto status codes. Storage detail never
// reaches the client; the service has already logged it.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case stdErrors.Is(err, warperrors.ErrNotFound):
		code = http.StatusNotFound
	case stdErrors.Is(err, warperrors.ErrInvalidKey):
		code = http.StatusBadRequest
	}
	http.Error(w, http.StatusText(code), code)
}
