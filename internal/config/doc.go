// Package config loads and validates application configuration from
// environment variables. Defaults suit local development; REDIS_URL and
// SESSION_SECRET are the only hard requirements.
package config
