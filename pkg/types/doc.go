// Package types defines the wire types and error taxonomy shared by the cache
// and server binaries. These are the canonical JSON shapes of the peer-cache
// and public volume endpoints, plus the origin event record.
package types
