// Package cache provides the small TTL'd LRU used to keep repeated
// report reads off the database.
package cache

// Cache is a generic key/value cache.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}
