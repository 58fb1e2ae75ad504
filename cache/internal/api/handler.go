package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/blockcache/blockcache/cache/internal/refresh"
	"github.com/blockcache/blockcache/cache/internal/store"
	"github.com/blockcache/blockcache/pkg/metrics"
	"github.com/blockcache/blockcache/pkg/types"
)

// maxBodyBytes caps the size of a POST /volume body.
const maxBodyBytes = 1 << 16

// PhaseSource reports what the refresh scheduler is doing.
type PhaseSource interface {
	Phase() refresh.Phase
}

// Handler is the HTTP handler for the cache binary.
type Handler struct {
	life   context.Context
	store  *store.Store
	phases PhaseSource
	mux    *http.ServeMux
}

// New creates a Handler reading from st and registers all routes. Once life
// is cancelled POST /volume answers 503. phases may be nil, in which case the
// phase is reported as idle.
func New(life context.Context, st *store.Store, phases PhaseSource) http.Handler {
	h := &Handler{life: life, store: st, phases: phases, mux: http.NewServeMux()}

	h.mux.HandleFunc("/volume", h.volume)
	h.mux.HandleFunc("/api/v1/volumes", h.volumes)
	h.mux.HandleFunc("/api/v1/health", h.health)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// volume returns POST /volume, the lookup the public server calls.
func (h *Handler) volume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.life.Err() != nil {
		jsonErr(w, http.StatusServiceUnavailable, types.ErrShutdown.Error())
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

	e, err := h.store.Get(req.PoolAddress)
	if errors.Is(err, types.ErrNotFound) {
		metrics.CacheLookups.WithLabelValues("not_found").Inc()
		jsonErr(w, http.StatusNotFound, types.ErrNotFound.Error())
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "cache lookup failed")
		return
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	jsonResp(w, http.StatusOK, types.VolumeResponse{PoolAddress: e.Key, Volume: e.Volume})
}

// volumes returns GET /api/v1/volumes.
func (h *Handler) volumes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store, h.phases))
}

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Pools:  h.store.Len(),
		Phase:  phaseOf(h.phases),
	})
}

// BuildSnapshot assembles the full cache view. Shared with the WebSocket hub.
func BuildSnapshot(st *store.Store, phases PhaseSource) SnapshotResponse {
	entries := st.Snapshot()
	out := make([]VolumeEntry, 0, len(entries))
	for _, e := range entries {
		v := VolumeEntry{PoolAddress: e.Key, Volume: e.Volume}
		if !e.UpdatedAt.IsZero() {
			v.UpdatedAt = e.UpdatedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, v)
	}
	return SnapshotResponse{
		Volumes:     out,
		Phase:       phaseOf(phases),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func phaseOf(p PhaseSource) string {
	if p == nil {
		return refresh.Idle.String()
	}
	return p.Phase().String()
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, types.ErrorResponse{Error: msg})
}
