package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/blockcache/blockcache/pkg/types"
	"github.com/blockcache/blockcache/server/internal/api"
)

// --- test helpers -----------------------------------------------------------

type sourceFunc func(ctx context.Context, pool string) (float64, error)

func (f sourceFunc) Volume(ctx context.Context, pool string) (float64, error) { return f(ctx, pool) }

func constant(v float64) sourceFunc {
	return func(context.Context, string) (float64, error) { return v, nil }
}

func newHandler(src sourceFunc) http.Handler {
	return api.New(context.Background(), src, []string{"*"})
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- POST /volume -----------------------------------------------------------

func TestVolume_OK(t *testing.T) {
	var asked string
	h := newHandler(func(_ context.Context, pool string) (float64, error) {
		asked = pool
		return 3.0, nil
	})
	rr := do(t, h, http.MethodPost, "/volume", `{"pool_address":"X"}`, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp types.VolumeResponse
	decode(t, rr, &resp)
	if resp.PoolAddress != "X" || resp.Volume != 3.0 {
		t.Errorf("body: got %+v, want {X 3}", resp)
	}
	if asked != "X" {
		t.Errorf("source asked for %q, want X", asked)
	}
}

func TestVolume_ZeroIsAnAnswer(t *testing.T) {
	rr := do(t, newHandler(constant(0)), http.MethodPost, "/volume", `{"pool_address":"Y"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp types.VolumeResponse
	decode(t, rr, &resp)
	if resp.Volume != 0 {
		t.Errorf("volume: got %v, want 0", resp.Volume)
	}
}

func TestVolume_BadRequest(t *testing.T) {
	h := newHandler(constant(1))
	for _, body := range []string{``, `[]`, `{"pool_address":""}`, `{"pool_address":`} {
		rr := do(t, h, http.MethodPost, "/volume", body, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: status got %d, want 400", body, rr.Code)
		}
	}
}

func TestVolume_UpstreamFailureIsGeneric(t *testing.T) {
	h := newHandler(func(context.Context, string) (float64, error) {
		return 0, fmt.Errorf("%w: dial tcp 10.0.0.5:5432: connection refused", types.ErrUpstream)
	})
	rr := do(t, h, http.MethodPost, "/volume", `{"pool_address":"X"}`, nil)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	var resp types.ErrorResponse
	decode(t, rr, &resp)
	if resp.Error != "failed to fetch volume" {
		t.Errorf("error: got %q, want generic message", resp.Error)
	}
}

func TestVolume_MethodNotAllowed(t *testing.T) {
	rr := do(t, newHandler(constant(1)), http.MethodGet, "/volume", "", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /volume: got %d, want 405", rr.Code)
	}
}

func TestVolume_AfterShutdown(t *testing.T) {
	life, cancel := context.WithCancel(context.Background())
	called := false
	h := api.New(life, sourceFunc(func(context.Context, string) (float64, error) {
		called = true
		return 1, nil
	}), []string{"*"})
	cancel()

	rr := do(t, h, http.MethodPost, "/volume", `{"pool_address":"X"}`, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", rr.Code)
	}
	var resp types.ErrorResponse
	decode(t, rr, &resp)
	if resp.Error != "service shutting down" {
		t.Errorf("error: got %q, want %q", resp.Error, "service shutting down")
	}
	if called {
		t.Error("source consulted after shutdown")
	}
}

// A lookup that fails because shutdown began mid-request is reported as 503.
func TestVolume_ShutdownDuringLookup(t *testing.T) {
	life, cancel := context.WithCancel(context.Background())
	h := api.New(life, sourceFunc(func(context.Context, string) (float64, error) {
		cancel()
		return 0, errors.New("context canceled")
	}), []string{"*"})

	rr := do(t, h, http.MethodPost, "/volume", `{"pool_address":"X"}`, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rr.Code)
	}
}

// --- CORS -------------------------------------------------------------------

func TestCORS_Preflight(t *testing.T) {
	rr := do(t, newHandler(constant(1)), http.MethodOptions, "/volume", "", map[string]string{
		"Origin":                         "https://app.example",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "Content-Type",
	})

	if rr.Code != http.StatusNoContent && rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 2xx", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin: got %q, want *", got)
	}
	if got := rr.Header().Get("Access-Control-Max-Age"); got != "3600" {
		t.Errorf("Max-Age: got %q, want 3600", got)
	}
}

func TestCORS_SimpleRequest(t *testing.T) {
	rr := do(t, newHandler(constant(2)), http.MethodPost, "/volume", `{"pool_address":"X"}`,
		map[string]string{"Origin": "https://app.example", "Content-Type": "application/json"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin: got %q, want *", got)
	}
}

func TestCORS_RestrictedOrigin(t *testing.T) {
	h := api.New(context.Background(), constant(1), []string{"https://good.example"})
	rr := do(t, h, http.MethodPost, "/volume", `{"pool_address":"X"}`,
		map[string]string{"Origin": "https://evil.example"})

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for disallowed origin: got %q, want empty", got)
	}
}

// --- GET /api/v1/health -----------------------------------------------------

func TestHealth(t *testing.T) {
	life, cancel := context.WithCancel(context.Background())
	h := api.New(life, constant(0), []string{"*"})

	rr := do(t, h, http.MethodGet, "/api/v1/health", "", nil)
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if rr.Code != http.StatusOK || resp.Status != "ok" {
		t.Errorf("before cancel: got %d %q, want 200 ok", rr.Code, resp.Status)
	}

	cancel()
	rr = do(t, h, http.MethodGet, "/api/v1/health", "", nil)
	decode(t, rr, &resp)
	if rr.Code != http.StatusServiceUnavailable || resp.Status != "shutting_down" {
		t.Errorf("after cancel: got %d %q, want 503 shutting_down", rr.Code, resp.Status)
	}
}
