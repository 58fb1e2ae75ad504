// Package store is the cache map: one volume entry per registered pool,
// readable by many goroutines while the refresh scheduler overwrites entries
// one at a time.
//
// The set of pools is fixed by New. Get on any other key returns
// types.ErrNotFound so callers can tell "no such pool" from "zero volume".
package store
