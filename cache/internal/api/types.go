package api

// VolumeEntry is one pool in GET /api/v1/volumes.
type VolumeEntry struct {
	PoolAddress string  `json:"pool_address"`
	Volume      float64 `json:"volume"`
	// UpdatedAt is RFC 3339, empty until the pool's first successful refresh.
	UpdatedAt string `json:"updated_at"`
}

// SnapshotResponse is the payload for GET /api/v1/volumes and the data of
// every WebSocket stream message.
type SnapshotResponse struct {
	Volumes     []VolumeEntry `json:"volumes"`
	Phase       string        `json:"phase"`
	GeneratedAt string        `json:"generated_at"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
	Pools  int    `json:"pools"`
	Phase  string `json:"phase"`
}
