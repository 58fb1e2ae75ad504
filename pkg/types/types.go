package types

import "time"

// DefaultWindow is the trailing window every volume aggregate covers.
const DefaultWindow = 5 * time.Minute

// VolumeRequest is the body of POST /volume on both the peer cache and the
// public server.
type VolumeRequest struct {
	PoolAddress string `json:"pool_address"`
}

// VolumeResponse is the success body of POST /volume.
type VolumeResponse struct {
	PoolAddress string  `json:"pool_address"`
	Volume      float64 `json:"volume"`
}

// ErrorResponse is the JSON error body returned by every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Event is one recorded trade against a pool. Signature is unique; inserting
// the same signature twice is a no-op in the origin store. Timestamp is
// assigned by the origin store at insert time.
type Event struct {
	Signature string
	Pool      string
	Amount    float64
	Timestamp time.Time
}
