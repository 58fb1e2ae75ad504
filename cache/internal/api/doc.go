// Package api implements the HTTP surface of the cache binary.
//
// New(store, phases) returns an http.Handler that serves:
//
//	POST /volume          peer-cache lookup: {"pool_address"} -> {"pool_address","volume"}
//	GET  /api/v1/volumes  every cached pool, its as-of time, and the refresh phase
//	GET  /api/v1/health   liveness plus registry size
//
// POST /volume answers 404 {"error":"volume not found in cache"} for pools
// outside the registry and 400 for bodies that are not a VolumeRequest with
// a pool address. Every route returns 405 for the wrong method and responds
// with Content-Type: application/json.
package api
