// Package refresh recomputes every registered pool's volume from the origin
// store on a fixed period and publishes the results into the cache map.
//
// Each round walks the pools in registration order. A pool whose query fails
// keeps its previous value and the round moves on; nothing is retried until
// the next tick. Cancellation is checked before each pool. A query that is
// already running is allowed to finish within QueryTimeout, but its result is
// thrown away if cancellation arrived meanwhile.
package refresh
