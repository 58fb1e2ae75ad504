// Package ws streams the cache map to WebSocket clients.
//
// New(store, phases, interval) creates a Hub. Hub.Run(ctx) pushes a snapshot
// to every client each interval and closes all connections when ctx is
// cancelled. Hub.ServeHTTP upgrades the request, sends the current snapshot at
// once, then keeps the client on the broadcast list until it disconnects.
//
// Message format:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/volumes */ }
//	}
//
// Mounted at /ws/stream by the cache binary. All origins are accepted.
package ws
