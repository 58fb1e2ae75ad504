// Package api implements the public HTTP surface of the server binary.
//
// New(lifecycle, source, origins) returns an http.Handler that serves:
//
//	POST /volume         {"pool_address"} -> {"pool_address","volume"}
//	GET  /api/v1/health  {"status":"ok"}, or 503 once shutdown has begun
//
// POST /volume answers 400 for a body without a pool address, 500 with the
// generic message "failed to fetch volume" when every source failed, and 503
// "service shutting down" for requests that arrive after the lifecycle
// context is cancelled. Pools nobody has traded answer 200 with volume 0.
//
// Cross-origin browser access is handled by github.com/rs/cors: POST and
// OPTIONS, the Content-Type header, and a one hour preflight cache.
package api
