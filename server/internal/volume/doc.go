// Package volume answers "what volume has pool P seen in the trailing window"
// for the public server.
//
// A Source is anything that can answer the question. Two exist:
//
//	PeerSource    asks the cache binary over HTTP with a bounded timeout
//	OriginSource  runs the aggregate directly against the origin store
//
// Fallback composes two Sources: the primary answer is returned as soon as it
// succeeds, and any primary error sends the request to the secondary. The
// server wires Fallback{Primary: peer, Secondary: origin}. Nothing is written
// back to the peer after a fallback.
package volume
