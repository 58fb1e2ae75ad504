// Package probe checks a running blockcache binary from the outside: it calls
// GET /api/v1/health and scrapes GET /metrics, then reduces the blockcache_*
// counters to a flat map an operator can read at a glance.
package probe
