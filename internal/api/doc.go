// Package api exposes the engine over HTTP.
//
// Routes:
//
//	POST   /{globeId}           insert a ball
//	DELETE /{globeId}/{uuid}    delete a ball
//	GET    /{globeId}/{cursor}  page through a globe's transactions
//	GET    /health              liveness probe
//	GET    /new_globe_id        allocate an unused globe id
//	GET    /metrics             Prometheus metrics
//
// Errors are RFC 7807 problem documents.
package api
