// Package cache provides a small generic LRU with optional TTL, used to keep
// provider customer lookups off the database during reconciliation.
package cache
