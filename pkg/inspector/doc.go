// Package inspector serves a live view of stores over HTTP.
//
// Routes:
//
//	GET /stats           counters of every store, as JSON
//	GET /stats/{store}   counters of one store
//	GET /events          websocket streaming store events (?store=name filters)
//	GET /metrics         Prometheus exposition, when a gatherer is configured
//
// The inspector never exposes state values; events carry keys, consumer ids
// and timings only.
package inspector
