package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"github.com/blockcache/blockcache/pkg/types"
	"github.com/blockcache/blockcache/server/internal/volume"
)

const (
	maxBodyBytes  = 1 << 16
	preflightSecs = 3600
)

// Handler serves the public endpoints.
type Handler struct {
	life context.Context
	src  volume.Source
	mux  *http.ServeMux
}

// New creates the public handler. life is the process lifecycle context;
// once it is cancelled every route answers 503. allowedOrigins configures
// CORS; "*" allows any origin.
func New(life context.Context, src volume.Source, allowedOrigins []string) http.Handler {
	h := &Handler{life: life, src: src, mux: http.NewServeMux()}

	h.mux.HandleFunc("/volume", h.volume)
	h.mux.HandleFunc("/api/v1/health", h.health)

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         preflightSecs,
	})
	return c.Handler(h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// volume returns POST /volume.
func (h *Handler) volume(w http.ResponseWriter, r *http.Request) {
	if h.life.Err() != nil {
		jsonErr(w, http.StatusServiceUnavailable, types.ErrShutdown.Error())
		return
	}
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req types.VolumeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PoolAddress == "" {
		jsonErr(w, http.StatusBadRequest, "pool_address is required")
		return
	}

	v, err := h.src.Volume(r.Context(), req.PoolAddress)
	if err != nil {
		if h.life.Err() != nil {
			jsonErr(w, http.StatusServiceUnavailable, types.ErrShutdown.Error())
			return
		}
		slog.Error("api: volume lookup failed", "pool", req.PoolAddress, "err", err)
		jsonErr(w, http.StatusInternalServerError, "failed to fetch volume")
		return
	}

	jsonResp(w, http.StatusOK, types.VolumeResponse{PoolAddress: req.PoolAddress, Volume: v})
}

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.life.Err() != nil {
		jsonResp(w, http.StatusServiceUnavailable, HealthResponse{Status: "shutting_down"})
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, types.ErrorResponse{Error: msg})
}
