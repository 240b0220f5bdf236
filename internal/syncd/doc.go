// Package syncd runs the saved search sync server.
//
// A Server owns a remote.Hub backed by the configured SQLite database and
// exposes it over HTTP:
//
//	/sync     websocket endpoint for remote.Client (?device=<id>)
//	/health   liveness, always 200 while the process serves
//	/ready    200 once the listener is up, 503 before and during shutdown
//
// The listener is plain TCP on server.http_addr, or a tailscale tsnet node
// when tailscale.enabled is set, optionally serving HTTPS with the node's
// certificates on :443.
package syncd
