// Package redis provides the Redis-backed storage for the one-time-passcode
// admission gate. Passcode expiry rides on native key TTLs, so there is no
// sweeper; a code that outlives its TTL simply stops existing.
package redis
