// Package redis provides helpers for connecting to a Redis server: a
// retrying Connect built from env-driven Config, and a healthcheck
// function for readiness probes. The returned client is the plain
// go-redis client; callers own its lifecycle.
package redis
