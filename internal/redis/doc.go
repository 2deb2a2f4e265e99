// Package redis adapts the external key-value collaborator: per-light state
// records for rehydration and write-behind persistence, plus metrics and
// circuit breaker hooks on the shared client.
package redis
