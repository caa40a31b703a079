// Package redis connects the optional Redis client that backs the
// cross-instance poll lock (see billing.RedisLocker). Redis is disabled when
// REDIS_URL is empty; Connect then returns ErrEmptyConnectionURL.
package redis
