// Package origin is the accessor for the durable transaction store that every
// volume aggregate is computed from.
//
// Store is the narrow contract both binaries depend on:
//
//	Aggregate(ctx, pool, window)  COALESCE(SUM(amount), 0) over the trailing window
//	Insert(ctx, event)            idempotent by signature, timestamp assigned by the store
//
// Two implementations exist: Postgres (database/sql + lib/pq, parameterized
// queries only) and Memory (in-process, used for local runs and as the
// reference origin in tests). Open(ctx, cfg) picks one from the `origin:`
// config block. Neither implementation retries; every failure surfaces as
// types.ErrStoreUnavailable.
package origin
