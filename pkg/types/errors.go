package types

import "errors"

var (
	// ErrStoreUnavailable means the origin store connection or query failed.
	ErrStoreUnavailable = errors.New("origin store unavailable")

	// ErrPeerUnreachable covers network errors, timeouts and non-2xx answers
	// from the peer cache. It always triggers the origin fallback.
	ErrPeerUnreachable = errors.New("peer cache unreachable")

	// ErrMalformedPeerResponse means the peer answered 2xx with a body that
	// does not decode into a valid VolumeResponse for the requested pool.
	ErrMalformedPeerResponse = errors.New("malformed peer cache response")

	// ErrNotFound is returned by the cache map for keys outside the registry.
	ErrNotFound = errors.New("volume not found in cache")

	// ErrUpstream is returned when every volume source failed.
	ErrUpstream = errors.New("upstream volume sources failed")

	// ErrShutdown is returned for work that arrives after cancellation.
	ErrShutdown = errors.New("service shutting down")
)
